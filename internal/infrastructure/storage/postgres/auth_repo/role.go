package auth_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"docuvault/internal/core/apperror"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/auth"
	"docuvault/internal/infrastructure/storage/postgres"
)

// RoleRepo implements auth.RoleRepository.
type RoleRepo struct {
	txm *postgres.TxManager
}

var _ auth.RoleRepository = (*RoleRepo)(nil)

// NewRoleRepo creates a new role repository.
func NewRoleRepo(txm *postgres.TxManager) *RoleRepo {
	return &RoleRepo{txm: txm}
}

const roleColumns = `id, tenant_id, code, name, description, is_system, created_at, updated_at`

func scanRole(row pgx.Row) (*auth.Role, error) {
	var role auth.Role
	err := row.Scan(
		&role.ID, &role.TenantID, &role.Code, &role.Name, &role.Description,
		&role.IsSystem, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Create creates a new role.
func (r *RoleRepo) Create(ctx context.Context, role *auth.Role) error {
	query := `
		INSERT INTO roles (id, tenant_id, code, name, description, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.txm.GetQuerier(ctx).Exec(ctx, query,
		role.ID, role.TenantID, role.Code, role.Name, role.Description,
		role.IsSystem, role.CreatedAt, role.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("role", "code", role.Code)
		}
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

// GetByID retrieves role by ID within a tenant.
func (r *RoleRepo) GetByID(ctx context.Context, tenantID string, roleID id.ID) (*auth.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1 AND tenant_id = $2`

	role, err := scanRole(r.txm.GetQuerier(ctx).QueryRow(ctx, query, roleID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("role", roleID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("query role: %w", err)
	}
	return role, nil
}

// GetByCode retrieves role by code within a tenant.
func (r *RoleRepo) GetByCode(ctx context.Context, tenantID, code string) (*auth.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = $1 AND code = $2`

	role, err := scanRole(r.txm.GetQuerier(ctx).QueryRow(ctx, query, tenantID, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("role", code)
	}
	if err != nil {
		return nil, fmt.Errorf("query role: %w", err)
	}
	return role, nil
}

// List retrieves roles of a tenant.
func (r *RoleRepo) List(ctx context.Context, tenantID string) ([]auth.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = $1 ORDER BY code`

	rows, err := r.txm.GetQuerier(ctx).Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var role auth.Role
		err := rows.Scan(
			&role.ID, &role.TenantID, &role.Code, &role.Name, &role.Description,
			&role.IsSystem, &role.CreatedAt, &role.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// AssignPermission binds a permission code to a role.
func (r *RoleRepo) AssignPermission(ctx context.Context, tenantID string, roleID id.ID, permissionCode string) error {
	// The role_id subquery pins the tenant so one tenant's admin cannot
	// touch another tenant's role.
	query := `
		INSERT INTO role_permissions (role_id, permission_code)
		SELECT r.id, $3 FROM roles r WHERE r.id = $1 AND r.tenant_id = $2
		ON CONFLICT (role_id, permission_code) DO NOTHING
	`

	_, err := r.txm.GetQuerier(ctx).Exec(ctx, query, roleID, tenantID, permissionCode)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperror.NewNotFound("permission", permissionCode)
		}
		return fmt.Errorf("assign permission: %w", err)
	}
	return nil
}

// RevokePermission removes a permission code from a role.
func (r *RoleRepo) RevokePermission(ctx context.Context, tenantID string, roleID id.ID, permissionCode string) error {
	query := `
		DELETE FROM role_permissions rp
		USING roles r
		WHERE rp.role_id = r.id AND r.id = $1 AND r.tenant_id = $2 AND rp.permission_code = $3
	`

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, query, roleID, tenantID, permissionCode)
	if err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("role permission", permissionCode)
	}
	return nil
}
