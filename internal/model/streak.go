package model

import "time"

// Streak statuses.
const (
	StreakPending   = "pending"
	StreakActive    = "active"
	StreakCompleted = "completed"
	StreakFailed    = "failed"
)

// Streak is a multi-day personal challenge. CurrentDay is 1-indexed and
// frozen once the status leaves active.
type Streak struct {
	ID           int64      `json:"id"`
	FamilyID     int64      `json:"family_id"`
	CreatedBy    int64      `json:"created_by"`
	AssignedTo   int64      `json:"assigned_to"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	DurationDays int        `json:"duration_days"`
	PointsReward int        `json:"points_reward"`
	Status       string     `json:"status"`
	CurrentDay   int        `json:"current_day"`
	StartedAt    *time.Time `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type StreakTask struct {
	ID        int64              `json:"id"`
	StreakID  int64              `json:"streak_id"`
	Title     string             `json:"title"`
	Required  bool               `json:"required"`
	SortOrder int                `json:"sort_order"`
	Options   []StreakTaskOption `json:"options,omitempty"`
}

type StreakTaskOption struct {
	ID        int64  `json:"id"`
	TaskID    int64  `json:"task_id"`
	Label     string `json:"label"`
	SortOrder int    `json:"sort_order"`
}

// StreakDay binds day N of a streak's run to a concrete calendar date.
// Dates are stored as UTC midnight of the intended local day.
type StreakDay struct {
	ID          int64      `json:"id"`
	StreakID    int64      `json:"streak_id"`
	DayNumber   int        `json:"day_number"`
	Date        time.Time  `json:"date"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

type StreakTaskCompletion struct {
	ID          int64      `json:"id"`
	StreakID    int64      `json:"streak_id"`
	DayID       int64      `json:"day_id"`
	TaskID      int64      `json:"task_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	OptionID    *int64     `json:"option_id"`
	UncheckedBy *int64     `json:"unchecked_by"`
	UncheckedAt *time.Time `json:"unchecked_at"`
}
