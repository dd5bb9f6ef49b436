package folder

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
	"docuvault/pkg/logger"
)

// Service provides folder administration. Creating folders and mutating ACL
// grants requires the FOLDER_MANAGE capability; reads require document read
// access resolved against the folder.
type Service struct {
	repo     Repository
	resolver *access.Service
	audit    audit.Emitter
	txm      tx.Manager
}

// NewService creates a folder service.
func NewService(repo Repository, resolver *access.Service, emitter audit.Emitter, txm tx.Manager) *Service {
	return &Service{repo: repo, resolver: resolver, audit: emitter, txm: txm}
}

// Create creates a folder, optionally nested under an existing parent.
func (s *Service) Create(ctx context.Context, name string, parentID *id.ID) (*Folder, error) {
	user := appctx.GetUser(ctx)
	identity := access.IdentityFromContext(user)
	if err := s.resolver.Authorize(ctx, identity, access.PermFolderManage, nil, nil); err != nil {
		return nil, err
	}

	if parentID != nil {
		if _, err := s.repo.GetByID(ctx, user.TenantID, *parentID); err != nil {
			return nil, err
		}
	}

	f := New(user.TenantID, name, user.UserID, parentID)
	if err := f.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}

	logger.Info(ctx, "folder created", "folder_id", f.ID, "name", f.Name)
	return f, nil
}

// Get retrieves a folder the caller may read.
func (s *Service) Get(ctx context.Context, folderID id.ID) (*Folder, error) {
	user := appctx.GetUser(ctx)
	f, err := s.repo.GetByID(ctx, user.TenantID, folderID)
	if err != nil {
		return nil, err
	}
	identity := access.IdentityFromContext(user)
	if err := s.resolver.Authorize(ctx, identity, access.PermDocumentRead, &folderID, nil); err != nil {
		return nil, err
	}
	return f, nil
}

// List returns folders under parentID (nil = roots).
func (s *Service) List(ctx context.Context, parentID *id.ID) ([]Folder, error) {
	user := appctx.GetUser(ctx)
	return s.repo.List(ctx, user.TenantID, parentID)
}

// Grant binds a role to an access level on a folder. The grant and its audit
// record commit atomically.
func (s *Service) Grant(ctx context.Context, folderID id.ID, roleID string, level access.Level) (*access.FolderPermission, error) {
	user := appctx.GetUser(ctx)
	identity := access.IdentityFromContext(user)
	if err := s.resolver.Authorize(ctx, identity, access.PermFolderManage, nil, nil); err != nil {
		return nil, err
	}
	if level != access.LevelRead && level != access.LevelWrite {
		return nil, apperror.NewValidation("level must be READ or WRITE").WithDetail("level", string(level))
	}
	if _, err := s.repo.GetByID(ctx, user.TenantID, folderID); err != nil {
		return nil, err
	}

	grant := &access.FolderPermission{
		ID:        id.New(),
		TenantID:  user.TenantID,
		FolderID:  folderID,
		RoleID:    roleID,
		Level:     level,
		GrantedBy: user.UserID,
		CreatedAt: time.Now().UTC(),
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Grant(ctx, grant); err != nil {
			return fmt.Errorf("grant folder access: %w", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			TenantID:   user.TenantID,
			ActorID:    user.UserID,
			ActorEmail: user.Email,
			Action:     "folder.grant_access",
			EntityType: audit.EntityFolder,
			EntityID:   folderID,
			Metadata: audit.Metadata{
				SchemaVersion: audit.MetadataSchemaVersion,
				FolderID:      folderID.String(),
				RoleID:        roleID,
				Level:         string(level),
			},
			CreatedAt: grant.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "folder access granted",
		"folder_id", folderID, "role_id", roleID, "level", level)
	return grant, nil
}

// Revoke removes a role's grant from a folder.
func (s *Service) Revoke(ctx context.Context, folderID id.ID, roleID string) error {
	user := appctx.GetUser(ctx)
	identity := access.IdentityFromContext(user)
	if err := s.resolver.Authorize(ctx, identity, access.PermFolderManage, nil, nil); err != nil {
		return err
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Revoke(ctx, user.TenantID, folderID, roleID); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			TenantID:   user.TenantID,
			ActorID:    user.UserID,
			ActorEmail: user.Email,
			Action:     "folder.revoke_access",
			EntityType: audit.EntityFolder,
			EntityID:   folderID,
			Metadata: audit.Metadata{
				SchemaVersion: audit.MetadataSchemaVersion,
				FolderID:      folderID.String(),
				RoleID:        roleID,
			},
			CreatedAt: time.Now().UTC(),
		})
	})
}

// ListGrants returns the folder's ACL rows.
func (s *Service) ListGrants(ctx context.Context, folderID id.ID) ([]access.FolderPermission, error) {
	user := appctx.GetUser(ctx)
	identity := access.IdentityFromContext(user)
	if err := s.resolver.Authorize(ctx, identity, access.PermFolderManage, nil, nil); err != nil {
		return nil, err
	}
	return s.repo.ListGrants(ctx, user.TenantID, folderID)
}
