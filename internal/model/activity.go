package model

import "time"

// ActivityEntry is one append-only audit line. Written best-effort and
// never read back by the engines.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	UserID    *int64    `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}
