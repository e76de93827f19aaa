package auth

import (
	"context"

	"github.com/hollyoak/chorebid/internal/model"
)

type contextKey struct{}

type AuthContext struct {
	UserID    int64
	FamilyID  int64
	Role      string
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func FamilyID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.FamilyID
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

// IsAdmin reports whether the caller holds the admin or owner role.
func (ac AuthContext) IsAdmin() bool {
	return ac.Role == model.RoleAdmin || ac.Role == model.RoleOwner
}

// IsOwner reports whether the caller holds the owner role.
func (ac AuthContext) IsOwner() bool {
	return ac.Role == model.RoleOwner
}

// IsAdmin reports whether the request's caller holds the admin or owner
// role.
func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.IsAdmin()
}

// IsOwner reports whether the request's caller holds the owner role.
func IsOwner(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.IsOwner()
}
