package auth_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"docuvault/internal/core/apperror"
	"docuvault/internal/domain/auth"
	"docuvault/internal/infrastructure/storage/postgres"
)

// PermissionRepo implements auth.PermissionRepository. Permissions are
// global; no tenant column.
type PermissionRepo struct {
	txm *postgres.TxManager
}

var _ auth.PermissionRepository = (*PermissionRepo)(nil)

// NewPermissionRepo creates a new permission repository.
func NewPermissionRepo(txm *postgres.TxManager) *PermissionRepo {
	return &PermissionRepo{txm: txm}
}

// GetByCode retrieves a permission by code.
func (r *PermissionRepo) GetByCode(ctx context.Context, code string) (*auth.Permission, error) {
	query := `SELECT code, name, description, created_at FROM permissions WHERE code = $1`

	var perm auth.Permission
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, query, code).Scan(
		&perm.Code, &perm.Name, &perm.Description, &perm.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("permission", code)
	}
	if err != nil {
		return nil, fmt.Errorf("query permission: %w", err)
	}
	return &perm, nil
}

// List retrieves all permissions.
func (r *PermissionRepo) List(ctx context.Context) ([]auth.Permission, error) {
	query := `SELECT code, name, description, created_at FROM permissions ORDER BY code`

	rows, err := r.txm.GetQuerier(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var perm auth.Permission
		if err := rows.Scan(&perm.Code, &perm.Name, &perm.Description, &perm.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// Ensure inserts the permission if the code does not exist yet. Existing
// rows are never updated: codes are immutable.
func (r *PermissionRepo) Ensure(ctx context.Context, perm *auth.Permission) error {
	query := `
		INSERT INTO permissions (code, name, description, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (code) DO NOTHING
	`

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, perm.Code, perm.Name, perm.Description); err != nil {
		return fmt.Errorf("ensure permission: %w", err)
	}
	return nil
}
