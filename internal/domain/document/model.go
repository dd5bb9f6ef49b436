// Package document provides the document domain: models, persistence
// contract, and the service tying authorization and workflow together.
package document

import (
	"context"
	"time"

	"docuvault/internal/core/apperror"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/workflow"
)

// Document is a tenant-scoped managed file with a lifecycle status. Status
// is written exclusively by the workflow engine; Version is the optimistic
// locking marker bumped on every update.
type Document struct {
	ID             id.ID           `db:"id" json:"id"`
	TenantID       string          `db:"tenant_id" json:"tenantId"`
	FolderID       id.ID           `db:"folder_id" json:"folderId"`
	Title          string          `db:"title" json:"title"`
	Description    string          `db:"description" json:"description,omitempty"`
	Status         workflow.Status `db:"status" json:"status"`
	ExpiresAt      *time.Time      `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedBy      string          `db:"created_by" json:"createdBy"`
	CurrentVersion *id.ID          `db:"current_version_id" json:"currentVersionId,omitempty"`
	SupersededByID *id.ID          `db:"superseded_by_id" json:"supersededById,omitempty"`
	RevisionOfID   *id.ID          `db:"revision_of_id" json:"revisionOfId,omitempty"`
	RevisionNo     int             `db:"revision_no" json:"revisionNo"`
	Version        int             `db:"version" json:"version"`
	DeletionMark   bool            `db:"deletion_mark" json:"deletionMark"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

// New creates a DRAFT document.
func New(tenantID string, folderID id.ID, title, createdBy string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:         id.New(),
		TenantID:   tenantID,
		FolderID:   folderID,
		Title:      title,
		Status:     workflow.StatusDraft,
		CreatedBy:  createdBy,
		RevisionNo: 1,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks entity invariants.
func (d *Document) Validate(ctx context.Context) error {
	if d.TenantID == "" {
		return apperror.NewValidation("tenant is required").WithDetail("field", "tenantId")
	}
	if id.IsNil(d.FolderID) {
		return apperror.NewValidation("folder is required").WithDetail("field", "folderId")
	}
	if d.Title == "" {
		return apperror.NewValidation("title is required").WithDetail("field", "title")
	}
	if !d.Status.Valid() {
		return apperror.NewValidation("invalid status").WithDetail("field", "status")
	}
	return nil
}

// EffectiveStatus returns the derived status at now. Advisory only; never
// written back to storage.
func (d *Document) EffectiveStatus(now time.Time) workflow.Status {
	return workflow.EffectiveStatus(d.Status, d.ExpiresAt, now)
}

// IsCreator reports whether userID created this document.
func (d *Document) IsCreator(userID string) bool {
	return userID != "" && d.CreatedBy == userID
}

// State projects the document onto the workflow engine's view.
func (d *Document) State() *workflow.DocumentState {
	return &workflow.DocumentState{
		ID:             d.ID,
		TenantID:       d.TenantID,
		FolderID:       d.FolderID,
		Title:          d.Title,
		Status:         d.Status,
		ExpiresAt:      d.ExpiresAt,
		CreatedBy:      d.CreatedBy,
		SupersededByID: d.SupersededByID,
		RevisionOfID:   d.RevisionOfID,
		RevisionNo:     d.RevisionNo,
		Version:        d.Version,
	}
}

// Version is one immutable uploaded payload of a document. The document
// points to at most one current version.
type Version struct {
	ID          id.ID     `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenantId"`
	DocumentID  id.ID     `db:"document_id" json:"documentId"`
	VersionNo   int       `db:"version_no" json:"versionNo"`
	FileName    string    `db:"file_name" json:"fileName"`
	ContentType string    `db:"content_type" json:"contentType,omitempty"`
	SizeBytes   int64     `db:"size_bytes" json:"sizeBytes"`
	StorageKey  string    `db:"storage_key" json:"-"`
	Checksum    string    `db:"checksum" json:"checksum,omitempty"`
	CreatedBy   string    `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Filter narrows document listings.
type Filter struct {
	FolderID *id.ID
	Status   *workflow.Status
	Search   string
	Limit    int
	Offset   int
}
