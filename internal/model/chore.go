package model

import "time"

type Chore struct {
	ID          int64     `json:"id"`
	FamilyID    int64     `json:"family_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	MinAge      int       `json:"min_age"`
	Difficulty  string    `json:"difficulty"`
	CreatedBy   *int64    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ChoreAssignment struct {
	ID          int64      `json:"id"`
	ChoreID     int64      `json:"chore_id"`
	FamilyID    int64      `json:"family_id"`
	UserID      int64      `json:"user_id"`
	Date        time.Time  `json:"date"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}
