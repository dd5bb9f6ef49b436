package access

import (
	appctx "docuvault/internal/core/context"
)

// Identity is the immutable per-request caller snapshot the resolver decides
// over. It is built once at authentication time; role or permission changes
// take effect on the next authentication, never retroactively.
type Identity struct {
	UserID      string
	TenantID    string
	RoleIDs     []string
	Permissions []string
	MFAActive   bool
}

// IdentityFromContext builds an Identity from the authenticated user context.
// Returns nil if the request carries no authenticated user.
func IdentityFromContext(user *appctx.UserContext) *Identity {
	if user == nil {
		return nil
	}
	return &Identity{
		UserID:      user.UserID,
		TenantID:    user.TenantID,
		RoleIDs:     user.RoleIDs,
		Permissions: user.Permissions,
		MFAActive:   user.MFAActive,
	}
}

// HasPermission reports whether the tenant-level RBAC set contains code.
func (i *Identity) HasPermission(code string) bool {
	for _, p := range i.Permissions {
		if p == code {
			return true
		}
	}
	return false
}

// HasRole reports whether the identity holds the given role id.
func (i *Identity) HasRole(roleID string) bool {
	for _, r := range i.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}
