package folder

import (
	"context"

	"docuvault/internal/core/id"
	"docuvault/internal/domain/access"
)

// Repository defines folder storage operations, tenant scoped throughout.
type Repository interface {
	// Create inserts a new folder.
	Create(ctx context.Context, f *Folder) error

	// GetByID retrieves a folder within the tenant.
	GetByID(ctx context.Context, tenantID string, folderID id.ID) (*Folder, error)

	// List retrieves folders under a parent (nil parent = roots).
	List(ctx context.Context, tenantID string, parentID *id.ID) ([]Folder, error)

	// SoftDelete marks a folder deleted. Fails when documents remain.
	SoftDelete(ctx context.Context, tenantID string, folderID id.ID) error

	// Grant upserts a role's access level on a folder.
	Grant(ctx context.Context, grant *access.FolderPermission) error

	// Revoke removes a role's grant from a folder.
	Revoke(ctx context.Context, tenantID string, folderID id.ID, roleID string) error

	// ListGrants returns all ACL rows for a folder.
	ListGrants(ctx context.Context, tenantID string, folderID id.ID) ([]access.FolderPermission, error)
}
