package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hollyoak/chorebid/internal/model"
)

type FamilyStore struct {
	db *sql.DB
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	err := scanner.Scan(&f.ID, &f.Name, &f.Timezone, &f.WeekStartsOn, &f.InviteCode, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanFamilyMember(scanner interface{ Scan(...any) error }) (*model.FamilyMember, error) {
	var m model.FamilyMember
	var birthDate sql.NullTime

	err := scanner.Scan(&m.ID, &m.FamilyID, &m.UserID, &m.Role, &birthDate, &m.TotalPoints, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if birthDate.Valid {
		m.BirthDate = &birthDate.Time
	}
	return &m, nil
}

const familyCols = `id, name, timezone, week_starts_on, invite_code, created_at, updated_at`
const familyMemberCols = `id, family_id, user_id, role, birth_date, total_points, created_at, updated_at`

func (s *FamilyStore) Create(name, timezone string, weekStartsOn int) (*model.Family, error) {
	codeBytes := make([]byte, 6)
	if _, err := rand.Read(codeBytes); err != nil {
		return nil, fmt.Errorf("generate invite code: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO families (name, timezone, week_starts_on, invite_code) VALUES (?, ?, ?, ?)`,
		name, timezone, weekStartsOn, hex.EncodeToString(codeBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *FamilyStore) GetByID(id int64) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) GetByInviteCode(code string) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE invite_code = ?`, code)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family by invite code: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) Update(id int64, name, timezone string, weekStartsOn int) (*model.Family, error) {
	_, err := s.db.Exec(
		`UPDATE families SET name = ?, timezone = ?, week_starts_on = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, timezone, weekStartsOn, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update family: %w", err)
	}
	return s.GetByID(id)
}

func (s *FamilyStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM families WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete family: %w", err)
	}
	return nil
}

// --- Member methods ---

func (s *FamilyStore) AddMember(familyID, userID int64, role string, birthDate *time.Time) (*model.FamilyMember, error) {
	var bd sql.NullTime
	if birthDate != nil {
		bd = sql.NullTime{Time: *birthDate, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO family_members (family_id, user_id, role, birth_date) VALUES (?, ?, ?, ?)`,
		familyID, userID, role, bd,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+familyMemberCols+` FROM family_members WHERE id = ?`, id)
	return scanFamilyMember(row)
}

// FirstMembership returns the user's earliest family membership, or nil
// if they belong to no family. Login uses it to pick the session's family.
func (s *FamilyStore) FirstMembership(userID int64) (*model.FamilyMember, error) {
	row := s.db.QueryRow(
		`SELECT `+familyMemberCols+` FROM family_members WHERE user_id = ? ORDER BY id ASC LIMIT 1`,
		userID,
	)
	m, err := scanFamilyMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first membership: %w", err)
	}
	return m, nil
}

// GetMember returns the membership row for (family, user), or nil if the
// user does not belong to the family.
func (s *FamilyStore) GetMember(familyID, userID int64) (*model.FamilyMember, error) {
	row := s.db.QueryRow(
		`SELECT `+familyMemberCols+` FROM family_members WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	)
	m, err := scanFamilyMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *FamilyStore) ListMembers(familyID int64) ([]model.FamilyMember, error) {
	rows, err := s.db.Query(
		`SELECT `+familyMemberCols+` FROM family_members WHERE family_id = ? ORDER BY id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		m, err := scanFamilyMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// ListMemberUserIDs returns the user IDs of all members of a family.
// Used by the notification fan-out.
func (s *FamilyStore) ListMemberUserIDs(familyID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT user_id FROM family_members WHERE family_id = ?`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list member user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *FamilyStore) UpdateMemberRole(familyID, userID int64, role string) (*model.FamilyMember, error) {
	_, err := s.db.Exec(
		`UPDATE family_members SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE family_id = ? AND user_id = ?`,
		role, familyID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}
	return s.GetMember(familyID, userID)
}

func (s *FamilyStore) UpdateMemberBirthDate(familyID, userID int64, birthDate *time.Time) (*model.FamilyMember, error) {
	var bd sql.NullTime
	if birthDate != nil {
		bd = sql.NullTime{Time: *birthDate, Valid: true}
	}
	_, err := s.db.Exec(
		`UPDATE family_members SET birth_date = ?, updated_at = CURRENT_TIMESTAMP WHERE family_id = ? AND user_id = ?`,
		bd, familyID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member birth date: %w", err)
	}
	return s.GetMember(familyID, userID)
}

func (s *FamilyStore) RemoveMember(familyID, userID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM family_members WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}
