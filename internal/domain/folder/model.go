// Package folder provides tenant-scoped, optionally nested folders and the
// administration of their ACL overrides.
package folder

import (
	"context"
	"time"

	"docuvault/internal/core/apperror"
	"docuvault/internal/core/id"
)

// Folder is a tenant-scoped container for documents. ParentID is nil for
// root folders.
type Folder struct {
	ID           id.ID     `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenantId"`
	ParentID     *id.ID    `db:"parent_id" json:"parentId,omitempty"`
	Name         string    `db:"name" json:"name"`
	CreatedBy    string    `db:"created_by" json:"createdBy"`
	Version      int       `db:"version" json:"version"`
	DeletionMark bool      `db:"deletion_mark" json:"deletionMark"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates a folder.
func New(tenantID, name, createdBy string, parentID *id.ID) *Folder {
	now := time.Now().UTC()
	return &Folder{
		ID:        id.New(),
		TenantID:  tenantID,
		ParentID:  parentID,
		Name:      name,
		CreatedBy: createdBy,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks entity invariants.
func (f *Folder) Validate(ctx context.Context) error {
	if f.TenantID == "" {
		return apperror.NewValidation("tenant is required").WithDetail("field", "tenantId")
	}
	if f.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	return nil
}
