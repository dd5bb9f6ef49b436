package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"docuvault/internal/core/apperror"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/access"
	"docuvault/internal/domain/folder"
)

const (
	folderTable    = "folders"
	folderACLTable = "folder_permissions"
)

// FolderRepo implements folder.Repository and access.ACLRepository. ACL rows
// live next to folders so grants and folder lifecycle share a transaction.
type FolderRepo struct {
	txm        *TxManager
	selectCols []string
}

var (
	_ folder.Repository    = (*FolderRepo)(nil)
	_ access.ACLRepository = (*FolderRepo)(nil)
)

// NewFolderRepo creates a folder repository.
func NewFolderRepo(txm *TxManager) *FolderRepo {
	return &FolderRepo{
		txm:        txm,
		selectCols: ExtractDBColumns[folder.Folder](),
	}
}

func (r *FolderRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a new folder.
func (r *FolderRepo) Create(ctx context.Context, f *folder.Folder) error {
	q := r.builder().
		Insert(folderTable).
		SetMap(StructToMap(f))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("folder", "name", f.Name)
		}
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

// GetByID retrieves a folder within the tenant.
func (r *FolderRepo) GetByID(ctx context.Context, tenantID string, folderID id.ID) (*folder.Folder, error) {
	f := &folder.Folder{}

	q := r.builder().
		Select(r.selectCols...).
		From(folderTable).
		Where(squirrel.Eq{"id": folderID, "tenant_id": tenantID, "deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), f, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("folder", folderID.String())
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return f, nil
}

// List retrieves folders under a parent (nil parent = roots).
func (r *FolderRepo) List(ctx context.Context, tenantID string, parentID *id.ID) ([]folder.Folder, error) {
	q := r.builder().
		Select(r.selectCols...).
		From(folderTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "deletion_mark": false}).
		OrderBy("name ASC")

	if parentID != nil {
		q = q.Where(squirrel.Eq{"parent_id": *parentID})
	} else {
		q = q.Where("parent_id IS NULL")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var folders []folder.Folder
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &folders, sql, args...); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

// SoftDelete marks a folder deleted unless documents remain in it.
func (r *FolderRepo) SoftDelete(ctx context.Context, tenantID string, folderID id.ID) error {
	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder().
		Select("COUNT(*)").
		From(documentTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "folder_id": folderID, "deletion_mark": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build count: %w", err)
	}
	var remaining int
	if err := pgxscan.Get(ctx, querier, &remaining, countSQL, countArgs...); err != nil {
		return fmt.Errorf("count folder documents: %w", err)
	}
	if remaining > 0 {
		return apperror.NewConflict("folder still contains documents").
			WithDetail("folder_id", folderID.String()).
			WithDetail("documents", remaining)
	}

	sql, args, err := r.builder().
		Update(folderTable).
		Set("deletion_mark", true).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": folderID, "tenant_id": tenantID, "deletion_mark": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("soft delete folder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("folder", folderID.String())
	}
	return nil
}

// Grant upserts a role's access level on a folder. One row per
// (folder, role); a re-grant replaces the level.
func (r *FolderRepo) Grant(ctx context.Context, grant *access.FolderPermission) error {
	q := r.builder().
		Insert(folderACLTable).
		SetMap(StructToMap(grant)).
		Suffix("ON CONFLICT (tenant_id, folder_id, role_id) DO UPDATE SET level = EXCLUDED.level, granted_by = EXCLUDED.granted_by")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build grant: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("grant folder access: %w", err)
	}
	return nil
}

// Revoke removes a role's grant from a folder.
func (r *FolderRepo) Revoke(ctx context.Context, tenantID string, folderID id.ID, roleID string) error {
	q := r.builder().
		Delete(folderACLTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "folder_id": folderID, "role_id": roleID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build revoke: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("revoke folder access: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("folder grant", roleID)
	}
	return nil
}

// ListGrants returns all ACL rows for a folder.
func (r *FolderRepo) ListGrants(ctx context.Context, tenantID string, folderID id.ID) ([]access.FolderPermission, error) {
	return r.ListForFolder(ctx, tenantID, folderID)
}

// ListForFolder implements access.ACLRepository.
func (r *FolderRepo) ListForFolder(ctx context.Context, tenantID string, folderID id.ID) ([]access.FolderPermission, error) {
	q := r.builder().
		Select(ExtractDBColumns[access.FolderPermission]()...).
		From(folderACLTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "folder_id": folderID}).
		OrderBy("created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var grants []access.FolderPermission
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &grants, sql, args...); err != nil {
		return nil, fmt.Errorf("list folder grants: %w", err)
	}
	return grants, nil
}
