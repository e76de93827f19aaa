package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hollyoak/chorebid/internal/model"
)

type AssignmentStore struct {
	db *sql.DB
}

func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func scanAssignment(scanner interface{ Scan(...any) error }) (*model.ChoreAssignment, error) {
	var a model.ChoreAssignment
	var completed int
	var completedAt sql.NullTime

	err := scanner.Scan(
		&a.ID, &a.ChoreID, &a.FamilyID, &a.UserID, &a.Date,
		&completed, &completedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Completed = completed != 0
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return &a, nil
}

const assignmentCols = `id, chore_id, family_id, user_id, date, completed, completed_at, created_at`

// Create inserts one assignment. The (user, chore, date) uniqueness
// constraint rejects duplicates at the database level.
func (s *AssignmentStore) Create(choreID, familyID, userID int64, date time.Time) (*model.ChoreAssignment, error) {
	result, err := s.db.Exec(
		`INSERT INTO chore_assignments (chore_id, family_id, user_id, date) VALUES (?, ?, ?, ?)`,
		choreID, familyID, userID, date.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AssignmentStore) GetByID(id int64) (*model.ChoreAssignment, error) {
	row := s.db.QueryRow(`SELECT `+assignmentCols+` FROM chore_assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// ListByFamilyDateRange lists assignments with start <= date <= end. Both
// ends are inclusive so a Monday..Sunday window covers the whole week.
func (s *AssignmentStore) ListByFamilyDateRange(familyID int64, start, end time.Time) ([]model.ChoreAssignment, error) {
	rows, err := s.db.Query(
		`SELECT `+assignmentCols+` FROM chore_assignments WHERE family_id = ? AND date >= ? AND date <= ? ORDER BY date ASC, id ASC`,
		familyID, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments by range: %w", err)
	}
	defer rows.Close()

	var assignments []model.ChoreAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

func (s *AssignmentStore) ListByUser(userID int64) ([]model.ChoreAssignment, error) {
	rows, err := s.db.Query(
		`SELECT `+assignmentCols+` FROM chore_assignments WHERE user_id = ? ORDER BY date ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments by user: %w", err)
	}
	defer rows.Close()

	var assignments []model.ChoreAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

func (s *AssignmentStore) MarkCompleted(id int64, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE chore_assignments SET completed = 1, completed_at = ? WHERE id = ?`,
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark assignment completed: %w", err)
	}
	return nil
}

func (s *AssignmentStore) MarkIncomplete(id int64) error {
	_, err := s.db.Exec(
		`UPDATE chore_assignments SET completed = 0, completed_at = NULL WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark assignment incomplete: %w", err)
	}
	return nil
}

// Reassign moves an assignment to a different user and/or date.
func (s *AssignmentStore) Reassign(id, userID int64, date time.Time) (*model.ChoreAssignment, error) {
	_, err := s.db.Exec(
		`UPDATE chore_assignments SET user_id = ?, date = ? WHERE id = ?`,
		userID, date.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("reassign: %w", err)
	}
	return s.GetByID(id)
}

func (s *AssignmentStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM chore_assignments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}
