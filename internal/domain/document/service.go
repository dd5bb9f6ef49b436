package document

import (
	"context"
	"fmt"
	"time"

	"docuvault/internal/core/apperror"
	appctx "docuvault/internal/core/context"
	"docuvault/internal/core/id"
	"docuvault/internal/core/tx"
	"docuvault/internal/domain/access"
	"docuvault/internal/domain/audit"
	"docuvault/internal/domain/folder"
	"docuvault/internal/domain/workflow"
	"docuvault/pkg/logger"
)

// actionPermissions maps workflow actions to the permission codes they imply.
var actionPermissions = map[workflow.Action]string{
	workflow.ActionSubmit:   access.PermDocumentSubmit,
	workflow.ActionApprove:  access.PermDocumentApprove,
	workflow.ActionReject:   access.PermDocumentReject,
	workflow.ActionWithdraw: access.PermDocumentWithdraw,
	workflow.ActionObsolete: access.PermDocumentObsolete,
}

// Service provides document business operations. It authorizes every call
// through the access resolver and delegates all status changes to the
// workflow engine.
type Service struct {
	repo     Repository
	folders  folder.Repository
	resolver *access.Service
	engine   *workflow.Engine
	audit    audit.Emitter
	txm      tx.Manager
	now      func() time.Time
}

// NewService creates a document service.
func NewService(
	repo Repository,
	folders folder.Repository,
	resolver *access.Service,
	engine *workflow.Engine,
	emitter audit.Emitter,
	txm tx.Manager,
) *Service {
	return &Service{
		repo:     repo,
		folders:  folders,
		resolver: resolver,
		engine:   engine,
		audit:    emitter,
		txm:      txm,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create creates a DRAFT document in a folder. Requires the global
// DOCUMENT_CREATE capability; folder ACL does not unlock it.
func (s *Service) Create(ctx context.Context, folderID id.ID, title, description string, expiresAt *time.Time) (*Document, error) {
	user := appctx.GetUser(ctx)
	identity := access.IdentityFromContext(user)
	if err := s.resolver.Authorize(ctx, identity, access.PermDocumentCreate, &folderID, nil); err != nil {
		return nil, err
	}
	if _, err := s.folders.GetByID(ctx, user.TenantID, folderID); err != nil {
		return nil, err
	}

	doc := New(user.TenantID, folderID, title, user.UserID)
	doc.Description = description
	doc.ExpiresAt = expiresAt
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			TenantID:   user.TenantID,
			ActorID:    user.UserID,
			ActorEmail: user.Email,
			Action:     "document.create",
			EntityType: audit.EntityDocument,
			EntityID:   doc.ID,
			Metadata: audit.Metadata{
				SchemaVersion: audit.MetadataSchemaVersion,
				ToStatus:      string(doc.Status),
				FolderID:      folderID.String(),
			},
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document created", "document_id", doc.ID, "folder_id", folderID)
	return doc, nil
}

// Get retrieves a document the caller may read.
func (s *Service) Get(ctx context.Context, docID id.ID) (*Document, error) {
	user := appctx.GetUser(ctx)
	doc, err := s.repo.GetByID(ctx, user.TenantID, docID)
	if err != nil {
		return nil, err
	}

	identity := access.IdentityFromContext(user)
	ref := &access.DocumentRef{ID: doc.ID, Status: doc.Status, CreatedBy: doc.CreatedBy}
	if err := s.resolver.Authorize(ctx, identity, access.PermDocumentRead, &doc.FolderID, ref); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns documents matching the filter. When the filter names a
// folder, read access is resolved against it.
func (s *Service) List(ctx context.Context, filter Filter) ([]Document, int, error) {
	user := appctx.GetUser(ctx)
	identity := access.IdentityFromContext(user)
	if err := s.resolver.Authorize(ctx, identity, access.PermDocumentRead, filter.FolderID, nil); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, user.TenantID, filter)
}

// Update changes title, description or expiry of a document. Status is out
// of reach here; only the workflow engine writes it.
func (s *Service) Update(ctx context.Context, docID id.ID, title, description string, expiresAt *time.Time) (*Document, error) {
	user := appctx.GetUser(ctx)
	doc, err := s.repo.GetByID(ctx, user.TenantID, docID)
	if err != nil {
		return nil, err
	}

	identity := access.IdentityFromContext(user)
	ref := &access.DocumentRef{ID: doc.ID, Status: doc.Status, CreatedBy: doc.CreatedBy}
	if err := s.resolver.Authorize(ctx, identity, access.PermDocumentUpdate, &doc.FolderID, ref); err != nil {
		return nil, err
	}
	if doc.Status != workflow.StatusDraft {
		return nil, apperror.NewDomainViolation(
			apperror.CodeDomainViolation,
			"only a draft document can be edited",
		).WithDetail("current_status", string(doc.Status))
	}

	if title != "" {
		doc.Title = title
	}
	doc.Description = description
	doc.ExpiresAt = expiresAt
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete soft-deletes a document. An administrative operation outside the
// state machine.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	user := appctx.GetUser(ctx)
	doc, err := s.repo.GetByID(ctx, user.TenantID, docID)
	if err != nil {
		return err
	}

	identity := access.IdentityFromContext(user)
	ref := &access.DocumentRef{ID: doc.ID, Status: doc.Status, CreatedBy: doc.CreatedBy}
	if err := s.resolver.Authorize(ctx, identity, access.PermDocumentDelete, &doc.FolderID, ref); err != nil {
		return err
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SoftDelete(ctx, user.TenantID, docID); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			TenantID:   user.TenantID,
			ActorID:    user.UserID,
			ActorEmail: user.Email,
			Action:     "document.delete",
			EntityType: audit.EntityDocument,
			EntityID:   docID,
			Metadata: audit.Metadata{
				SchemaVersion: audit.MetadataSchemaVersion,
				FromStatus:    string(doc.Status),
				FolderID:      doc.FolderID.String(),
			},
			CreatedAt: s.now(),
		})
	})
}

// AddVersion attaches a new payload version. The precondition consults the
// effective status: DRAFT documents accept uploads freely, APPROVED ones only
// while the approval has not expired.
func (s *Service) AddVersion(ctx context.Context, docID id.ID, fileName, contentType, storageKey, checksum string, sizeBytes int64) (*Version, error) {
	user := appctx.GetUser(ctx)
	doc, err := s.repo.GetByID(ctx, user.TenantID, docID)
	if err != nil {
		return nil, err
	}

	identity := access.IdentityFromContext(user)
	ref := &access.DocumentRef{ID: doc.ID, Status: doc.Status, CreatedBy: doc.CreatedBy}
	if err := s.resolver.Authorize(ctx, identity, access.PermDocumentUploadVersion, &doc.FolderID, ref); err != nil {
		return nil, err
	}

	switch effective := doc.EffectiveStatus(s.now()); effective {
	case workflow.StatusDraft, workflow.StatusApproved:
		// ok
	case workflow.StatusExpired:
		return nil, apperror.NewDocumentExpired(docID)
	default:
		return nil, apperror.NewDomainViolation(
			apperror.CodeDomainViolation,
			"document does not accept new versions in its current status",
		).WithDetail("effective_status", string(effective))
	}

	var v *Version
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		versionNo, err := s.repo.NextVersionNo(ctx, user.TenantID, docID)
		if err != nil {
			return fmt.Errorf("next version number: %w", err)
		}
		v = &Version{
			ID:          id.New(),
			TenantID:    user.TenantID,
			DocumentID:  docID,
			VersionNo:   versionNo,
			FileName:    fileName,
			ContentType: contentType,
			SizeBytes:   sizeBytes,
			StorageKey:  storageKey,
			Checksum:    checksum,
			CreatedBy:   user.UserID,
			CreatedAt:   s.now(),
		}
		if err := s.repo.InsertVersion(ctx, v); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}

		affected, err := s.repo.SetCurrentVersion(ctx, user.TenantID, docID, doc.Version, v.ID)
		if err != nil {
			return fmt.Errorf("set current version: %w", err)
		}
		if affected == 0 {
			return apperror.NewStateMismatch("document", docID)
		}

		return s.audit.Record(ctx, audit.Entry{
			TenantID:   user.TenantID,
			ActorID:    user.UserID,
			ActorEmail: user.Email,
			Action:     "document.upload_version",
			EntityType: audit.EntityDocument,
			EntityID:   docID,
			Metadata: audit.Metadata{
				SchemaVersion: audit.MetadataSchemaVersion,
				FolderID:      doc.FolderID.String(),
				VersionNo:     versionNo,
			},
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document version uploaded",
		"document_id", docID, "version_no", v.VersionNo)
	return v, nil
}

// ListVersions returns payload versions for a readable document.
func (s *Service) ListVersions(ctx context.Context, docID id.ID) ([]Version, error) {
	user := appctx.GetUser(ctx)
	doc, err := s.repo.GetByID(ctx, user.TenantID, docID)
	if err != nil {
		return nil, err
	}
	identity := access.IdentityFromContext(user)
	ref := &access.DocumentRef{ID: doc.ID, Status: doc.Status, CreatedBy: doc.CreatedBy}
	if err := s.resolver.Authorize(ctx, identity, access.PermDocumentRead, &doc.FolderID, ref); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, user.TenantID, docID)
}

// Transition authorizes and applies a workflow action.
func (s *Service) Transition(ctx context.Context, docID id.ID, action workflow.Action) (*workflow.Summary, error) {
	permission, ok := actionPermissions[action]
	if !ok {
		return nil, apperror.NewValidation("unknown action").WithDetail("action", string(action))
	}

	user := appctx.GetUser(ctx)
	doc, err := s.repo.GetByID(ctx, user.TenantID, docID)
	if err != nil {
		return nil, err
	}

	identity := access.IdentityFromContext(user)
	ref := &access.DocumentRef{ID: doc.ID, Status: doc.Status, CreatedBy: doc.CreatedBy}
	if err := s.resolver.Authorize(ctx, identity, permission, &doc.FolderID, ref); err != nil {
		return nil, err
	}

	return s.engine.Transition(ctx, user.TenantID, docID, action, user)
}

// CreateRevision creates the single permitted DRAFT successor of an approved
// document.
func (s *Service) CreateRevision(ctx context.Context, docID id.ID) (*Document, error) {
	user := appctx.GetUser(ctx)
	doc, err := s.repo.GetByID(ctx, user.TenantID, docID)
	if err != nil {
		return nil, err
	}

	identity := access.IdentityFromContext(user)
	ref := &access.DocumentRef{ID: doc.ID, Status: doc.Status, CreatedBy: doc.CreatedBy}
	if err := s.resolver.Authorize(ctx, identity, access.PermDocumentCreate, &doc.FolderID, ref); err != nil {
		return nil, err
	}

	state, err := s.engine.NewRevision(ctx, user.TenantID, docID, user)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, user.TenantID, state.ID)
}
