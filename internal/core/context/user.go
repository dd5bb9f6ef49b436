// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// UserContext contains the authenticated caller snapshot.
// It is derived from JWT claims at authentication time and is read-only:
// role or permission changes take effect on the next authentication.
type UserContext struct {
	UserID      string
	TenantID    string
	Email       string
	RoleIDs     []string
	Permissions []string
	MFAActive   bool
	SessionID   string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetTenantID returns tenant ID from context or empty string.
func GetTenantID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.TenantID
	}
	return ""
}

// HasRole checks if the caller holds a specific role id.
func HasRole(ctx context.Context, roleID string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	for _, r := range u.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}
