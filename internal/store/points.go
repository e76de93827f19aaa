package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hollyoak/chorebid/internal/model"
)

// PointsStore owns the points_earned ledger and the denormalized
// family_members.total_points mirror. Every mutator runs the ledger write
// and the total update in one transaction so the two can never drift.
type PointsStore struct {
	db *sql.DB
}

func NewPointsStore(db *sql.DB) *PointsStore {
	return &PointsStore{db: db}
}

func scanPointsEntry(scanner interface{ Scan(...any) error }) (*model.PointsEntry, error) {
	var e model.PointsEntry
	var choreID sql.NullInt64

	err := scanner.Scan(
		&e.ID, &e.UserID, &e.FamilyID, &choreID, &e.Points,
		&e.Reason, &e.Date, &e.WeekStart, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if choreID.Valid {
		e.ChoreID = &choreID.Int64
	}
	return &e, nil
}

const pointsCols = `id, user_id, family_id, chore_id, points, reason, date, week_start, created_at`

// Grant appends a ledger entry and moves the member's total by the same
// amount. Points may be negative (a spend).
func (s *PointsStore) Grant(userID, familyID int64, choreID *int64, points int, reason string, date, weekStart time.Time) (*model.PointsEntry, error) {
	var cID sql.NullInt64
	if choreID != nil {
		cID = sql.NullInt64{Int64: *choreID, Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO points_earned (user_id, family_id, chore_id, points, reason, date, week_start) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, familyID, cID, points, reason, date.UTC(), weekStart.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert points entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE family_members SET total_points = total_points + ?, updated_at = CURRENT_TIMESTAMP WHERE family_id = ? AND user_id = ?`,
		points, familyID, userID,
	); err != nil {
		return nil, fmt.Errorf("update total points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+pointsCols+` FROM points_earned WHERE id = ?`, id)
	return scanPointsEntry(row)
}

// Reverse deletes a ledger entry and backs its points out of the member's
// total, atomically.
func (s *PointsStore) Reverse(entryID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+pointsCols+` FROM points_earned WHERE id = ?`, entryID)
	e, err := scanPointsEntry(row)
	if err == sql.ErrNoRows {
		return fmt.Errorf("points entry %d not found", entryID)
	}
	if err != nil {
		return fmt.Errorf("get points entry: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM points_earned WHERE id = ?`, entryID); err != nil {
		return fmt.Errorf("delete points entry: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE family_members SET total_points = total_points - ?, updated_at = CURRENT_TIMESTAMP WHERE family_id = ? AND user_id = ?`,
		e.Points, e.FamilyID, e.UserID,
	); err != nil {
		return fmt.Errorf("update total points: %w", err)
	}

	return tx.Commit()
}

// FindByChoreDate locates the grant recorded for one completed assignment.
func (s *PointsStore) FindByChoreDate(userID, choreID int64, date time.Time) (*model.PointsEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+pointsCols+` FROM points_earned WHERE user_id = ? AND chore_id = ? AND date = ? ORDER BY id DESC LIMIT 1`,
		userID, choreID, date.UTC(),
	)
	e, err := scanPointsEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find points entry: %w", err)
	}
	return e, nil
}

func (s *PointsStore) ListByUser(userID int64) ([]model.PointsEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+pointsCols+` FROM points_earned WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list points entries: %w", err)
	}
	defer rows.Close()

	var entries []model.PointsEntry
	for rows.Next() {
		e, err := scanPointsEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan points entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// SumForUser recomputes the ledger total. Tests compare this against the
// denormalized total to verify the two never diverge.
func (s *PointsStore) SumForUser(userID int64) (int, error) {
	var sum sql.NullInt64
	err := s.db.QueryRow(`SELECT COALESCE(SUM(points), 0) FROM points_earned WHERE user_id = ?`, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum points: %w", err)
	}
	return int(sum.Int64), nil
}

// ResetUser clears a member's ledger and zeroes their total.
func (s *PointsStore) ResetUser(userID, familyID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM points_earned WHERE user_id = ? AND family_id = ?`,
		userID, familyID,
	); err != nil {
		return fmt.Errorf("delete points entries: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE family_members SET total_points = 0, updated_at = CURRENT_TIMESTAMP WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	); err != nil {
		return fmt.Errorf("zero total points: %w", err)
	}

	return tx.Commit()
}

// Leaderboard returns each member's denormalized total, highest first.
func (s *PointsStore) Leaderboard(familyID int64) ([]model.LeaderboardEntry, error) {
	rows, err := s.db.Query(
		`SELECT fm.user_id, u.name, fm.total_points
		 FROM family_members fm JOIN users u ON u.id = fm.user_id
		 WHERE fm.family_id = ?
		 ORDER BY fm.total_points DESC, u.name ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.TotalPoints); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
