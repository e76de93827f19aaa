package model

import "time"

// Member roles, least to most privileged.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

type Family struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Timezone     string    `json:"timezone"`
	WeekStartsOn int       `json:"week_starts_on"`
	InviteCode   string    `json:"invite_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type FamilyMember struct {
	ID          int64      `json:"id"`
	FamilyID    int64      `json:"family_id"`
	UserID      int64      `json:"user_id"`
	Role        string     `json:"role"`
	BirthDate   *time.Time `json:"birth_date"`
	TotalPoints int        `json:"total_points"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Age returns the member's age in whole years at the given instant, or -1
// when no birth date is recorded.
func (m *FamilyMember) Age(at time.Time) int {
	if m.BirthDate == nil {
		return -1
	}
	b := *m.BirthDate
	age := at.Year() - b.Year()
	if at.Month() < b.Month() || (at.Month() == b.Month() && at.Day() < b.Day()) {
		age--
	}
	return age
}
