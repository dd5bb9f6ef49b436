package document

import (
	"context"

	"docuvault/internal/core/id"
)

// Repository defines document storage operations. Every read and write is
// tenant scoped: an id living in another tenant behaves as absent.
type Repository interface {
	// Create inserts a new document.
	Create(ctx context.Context, doc *Document) error

	// GetByID retrieves a document within the tenant.
	GetByID(ctx context.Context, tenantID string, docID id.ID) (*Document, error)

	// List retrieves documents with filtering.
	List(ctx context.Context, tenantID string, filter Filter) ([]Document, int, error)

	// Update writes mutable fields under optimistic locking.
	Update(ctx context.Context, doc *Document) error

	// SoftDelete marks a document deleted.
	SoftDelete(ctx context.Context, tenantID string, docID id.ID) error

	// InsertVersion stores a new payload version.
	InsertVersion(ctx context.Context, v *Version) error

	// SetCurrentVersion points the document at a version, conditional on the
	// optimistic locking marker. Returns affected row count.
	SetCurrentVersion(ctx context.Context, tenantID string, docID id.ID, expectedVersion int, versionID id.ID) (int64, error)

	// ListVersions returns all payload versions, newest first.
	ListVersions(ctx context.Context, tenantID string, docID id.ID) ([]Version, error)

	// NextVersionNo returns the next payload version number for a document.
	NextVersionNo(ctx context.Context, tenantID string, docID id.ID) (int, error)
}
