// Package audit defines the immutable audit trail contract. The core emits
// exactly one record per authorization denial and per successful status
// transition; storage lives in infrastructure.
package audit

import (
	"context"
	"time"

	"docuvault/internal/core/id"
)

// Entity types appearing in the trail.
const (
	EntityDocument = "document"
	EntityFolder   = "folder"
	EntityUser     = "user"
)

// MetadataSchemaVersion is the current closed metadata schema. Bump when a
// field is added so consumers can interpret old rows.
const MetadataSchemaVersion = 1

// Metadata is a closed, versioned set of optional fields attached to an
// entry. Deliberately not a free-form map: the schema stays testable.
type Metadata struct {
	SchemaVersion int    `json:"schemaVersion"`
	FromStatus    string `json:"fromStatus,omitempty"`
	ToStatus      string `json:"toStatus,omitempty"`
	FolderID      string `json:"folderId,omitempty"`
	Permission    string `json:"permission,omitempty"`
	Decision      string `json:"decision,omitempty"`
	Reason        string `json:"reason,omitempty"`
	SuccessorID   string `json:"successorId,omitempty"`
	VersionNo     int    `json:"versionNo,omitempty"`
	RoleID        string `json:"roleId,omitempty"`
	Level         string `json:"level,omitempty"`
}

// Entry is one immutable audit record.
type Entry struct {
	ID         id.ID     `db:"id" json:"id"`
	TenantID   string    `db:"tenant_id" json:"tenantId"`
	ActorID    string    `db:"actor_id" json:"actorId"`
	ActorEmail string    `db:"actor_email" json:"actorEmail,omitempty"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   id.ID     `db:"entity_id" json:"entityId"`
	Metadata   Metadata  `db:"metadata" json:"metadata"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Emitter durably records audit entries. Record is called within the same
// transaction as the mutation it describes; an error aborts that mutation
// (fail-closed, never fail-open).
type Emitter interface {
	Record(ctx context.Context, entry Entry) error
}

// Reader retrieves the trail for an entity, newest first.
type Reader interface {
	ListByEntity(ctx context.Context, tenantID, entityType string, entityID id.ID, limit int) ([]Entry, error)
}
