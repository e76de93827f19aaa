package model

import "time"

// Auction statuses.
const (
	AuctionActive    = "active"
	AuctionStopped   = "stopped"
	AuctionCompleted = "completed"
)

// Auction is one sealed lowest-bid round for a single chore in a single week.
// At most one auction exists per (chore, week_start) pair.
type Auction struct {
	ID          int64     `json:"id"`
	ChoreID     int64     `json:"chore_id"`
	FamilyID    int64     `json:"family_id"`
	WeekStart   time.Time `json:"week_start"`
	Status      string    `json:"status"`
	StartPoints int       `json:"start_points"`
	EndTime     time.Time `json:"end_time"`
	CreatedAt   time.Time `json:"created_at"`
}

// Bid is a member's proposed point cost; one row per (auction, user),
// so a repeat bid replaces the prior one.
type Bid struct {
	ID        int64     `json:"id"`
	AuctionID int64     `json:"auction_id"`
	UserID    int64     `json:"user_id"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
