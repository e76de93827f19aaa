package model

import "time"

// PointsEntry is one immutable ledger row. A member's total_points must
// always equal the sum of their entries.
type PointsEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	FamilyID  int64     `json:"family_id"`
	ChoreID   *int64    `json:"chore_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	Date      time.Time `json:"date"`
	WeekStart time.Time `json:"week_start"`
	CreatedAt time.Time `json:"created_at"`
}

type LeaderboardEntry struct {
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	TotalPoints int    `json:"total_points"`
}
