package store

import (
	"database/sql"
	"fmt"

	"github.com/hollyoak/chorebid/internal/model"
)

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

const activityCols = `id, family_id, user_id, action, details, created_at`

func (s *ActivityStore) Create(familyID int64, userID *int64, action, details string) error {
	var uid sql.NullInt64
	if userID != nil {
		uid = sql.NullInt64{Int64: *userID, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO activity_log (family_id, user_id, action, details) VALUES (?, ?, ?, ?)`,
		familyID, uid, action, details,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *ActivityStore) ListByFamily(familyID int64, limit int) ([]model.ActivityEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+activityCols+` FROM activity_log WHERE family_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		familyID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []model.ActivityEntry
	for rows.Next() {
		var e model.ActivityEntry
		var uid sql.NullInt64
		if err := rows.Scan(&e.ID, &e.FamilyID, &uid, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if uid.Valid {
			e.UserID = &uid.Int64
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
