package access

import (
	"context"
	"fmt"
	"time"

	"docuvault/internal/core/apperror"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/audit"
	"docuvault/internal/domain/workflow"
	"docuvault/internal/obs"
	"docuvault/pkg/logger"
)

// DocumentRef carries the document facts the resolver needs: who created it
// and what status it is stored in.
type DocumentRef struct {
	ID        id.ID
	Status    workflow.Status
	CreatedBy string
}

// Service answers authorization questions for API-layer collaborators. The
// decision itself is the pure Resolve function; the service loads folder ACL
// rows and records denials in the audit trail.
type Service struct {
	acl   ACLRepository
	audit audit.Emitter
	now   func() time.Time
}

// NewService creates an access service.
func NewService(acl ACLRepository, emitter audit.Emitter) *Service {
	return &Service{
		acl:   acl,
		audit: emitter,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ResolvePermission decides ALLOW or DENY without side effects. folderID and
// doc are optional. An invalid identity is an error, never a DENY.
func (s *Service) ResolvePermission(ctx context.Context, identity *Identity, permission string, folderID *id.ID, doc *DocumentRef) (Decision, error) {
	if identity == nil {
		return Deny, apperror.NewInvalidIdentity("identity snapshot is required")
	}

	req := Request{Permission: permission}
	if doc != nil {
		req.IsCreator = doc.CreatedBy != "" && doc.CreatedBy == identity.UserID
		req.DocumentStatus = doc.Status
	}
	if folderID != nil {
		grants, err := s.acl.ListForFolder(ctx, identity.TenantID, *folderID)
		if err != nil {
			return Deny, apperror.NewInternal(fmt.Errorf("load folder acl: %w", err))
		}
		req.FolderGrants = grants
	}

	return Resolve(identity, req)
}

// Authorize resolves the permission and maps DENY to a forbidden error. Every
// denial produces exactly one audit record; a failure to write it aborts the
// whole operation.
func (s *Service) Authorize(ctx context.Context, identity *Identity, permission string, folderID *id.ID, doc *DocumentRef) error {
	decision, err := s.ResolvePermission(ctx, identity, permission, folderID, doc)
	if err != nil {
		return err
	}
	if decision == Allow {
		return nil
	}

	obs.AuthorizationDenied(permission)

	entry := audit.Entry{
		TenantID:   identity.TenantID,
		ActorID:    identity.UserID,
		Action:     "access.denied",
		EntityType: audit.EntityDocument,
		Metadata: audit.Metadata{
			SchemaVersion: audit.MetadataSchemaVersion,
			Permission:    permission,
			Decision:      Deny.String(),
		},
		CreatedAt: s.now(),
	}
	if folderID != nil {
		entry.Metadata.FolderID = folderID.String()
		entry.EntityType = audit.EntityFolder
		entry.EntityID = *folderID
	}
	if doc != nil {
		entry.EntityType = audit.EntityDocument
		entry.EntityID = doc.ID
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return apperror.NewInternal(fmt.Errorf("audit denial: %w", err))
	}

	logger.Debug(ctx, "authorization denied",
		"permission", permission,
		"user_id", identity.UserID,
	)

	// Non-leaking message: no internal identifiers.
	return apperror.NewForbidden("insufficient permissions").
		WithDetail("required_permission", permission)
}
