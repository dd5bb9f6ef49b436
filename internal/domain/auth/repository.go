package auth

import (
	"context"

	"docuvault/internal/core/id"
)

// UserRepository defines user storage operations, tenant scoped.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves user by ID within a tenant.
	GetByID(ctx context.Context, tenantID string, userID id.ID) (*User, error)

	// GetByEmail retrieves user by email within a tenant.
	GetByEmail(ctx context.Context, tenantID, email string) (*User, error)

	// Update updates user data under optimistic locking.
	Update(ctx context.Context, user *User) error

	// LoadRoles loads user's roles.
	LoadRoles(ctx context.Context, tenantID string, userID id.ID) ([]Role, error)

	// LoadPermissions loads user's permission codes (flattened from roles).
	LoadPermissions(ctx context.Context, tenantID string, userID id.ID) ([]string, error)

	// AssignRole assigns a role to a user.
	AssignRole(ctx context.Context, tenantID string, userID, roleID id.ID, grantedBy string) error

	// RevokeRole revokes a role from a user.
	RevokeRole(ctx context.Context, tenantID string, userID, roleID id.ID) error
}

// RoleRepository defines role storage operations, tenant scoped.
type RoleRepository interface {
	// Create creates a new role.
	Create(ctx context.Context, role *Role) error

	// GetByID retrieves role by ID within a tenant.
	GetByID(ctx context.Context, tenantID string, roleID id.ID) (*Role, error)

	// GetByCode retrieves role by code within a tenant.
	GetByCode(ctx context.Context, tenantID, code string) (*Role, error)

	// List retrieves roles of a tenant.
	List(ctx context.Context, tenantID string) ([]Role, error)

	// AssignPermission binds a permission code to a role.
	AssignPermission(ctx context.Context, tenantID string, roleID id.ID, permissionCode string) error

	// RevokePermission removes a permission code from a role.
	RevokePermission(ctx context.Context, tenantID string, roleID id.ID, permissionCode string) error
}

// PermissionRepository defines the global permission catalog.
type PermissionRepository interface {
	// GetByCode retrieves a permission by code.
	GetByCode(ctx context.Context, code string) (*Permission, error)

	// List retrieves all permissions.
	List(ctx context.Context) ([]Permission, error)

	// Ensure inserts the permission if the code does not exist yet.
	Ensure(ctx context.Context, perm *Permission) error
}
