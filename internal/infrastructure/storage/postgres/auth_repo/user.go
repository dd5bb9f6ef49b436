// Package auth_repo provides PostgreSQL implementations for auth
// repositories. All queries are tenant scoped.
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

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	txm *postgres.TxManager
}

var _ auth.UserRepository = (*UserRepo)(nil)

// NewUserRepo creates a new user repository.
func NewUserRepo(txm *postgres.TxManager) *UserRepo {
	return &UserRepo{txm: txm}
}

const userColumns = `
	id, tenant_id, email, password_hash, display_name,
	is_active, mfa_enabled, failed_login_attempts, locked_until,
	last_login_at, version, created_at, updated_at
`

func scanUser(row pgx.Row) (*auth.User, error) {
	var user auth.User
	err := row.Scan(
		&user.ID, &user.TenantID, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.IsActive, &user.MFAEnabled, &user.FailedLoginAttempts, &user.LockedUntil,
		&user.LastLoginAt, &user.Version, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	query := `
		INSERT INTO users (
			id, tenant_id, email, password_hash, display_name,
			is_active, mfa_enabled, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.txm.GetQuerier(ctx).Exec(ctx, query,
		user.ID, user.TenantID, user.Email, user.PasswordHash, user.DisplayName,
		user.IsActive, user.MFAEnabled, user.Version, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("user", "email", user.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves user by ID within a tenant.
func (r *UserRepo) GetByID(ctx context.Context, tenantID string, userID id.ID) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND tenant_id = $2`

	user, err := scanUser(r.txm.GetQuerier(ctx).QueryRow(ctx, query, userID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("user", userID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves user by email within a tenant.
func (r *UserRepo) GetByEmail(ctx context.Context, tenantID, email string) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND email = $2`

	user, err := scanUser(r.txm.GetQuerier(ctx).QueryRow(ctx, query, tenantID, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// Update updates user data under optimistic locking.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	query := `
		UPDATE users SET
			email = $1, display_name = $2, is_active = $3, mfa_enabled = $4,
			failed_login_attempts = $5, locked_until = $6, last_login_at = $7,
			version = version + 1, updated_at = NOW()
		WHERE id = $8 AND tenant_id = $9 AND version = $10
	`

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, query,
		user.Email, user.DisplayName, user.IsActive, user.MFAEnabled,
		user.FailedLoginAttempts, user.LockedUntil, user.LastLoginAt,
		user.ID, user.TenantID, user.Version,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewStateMismatch("user", user.ID.String())
	}
	user.Version++
	return nil
}

// LoadRoles loads user's roles.
func (r *UserRepo) LoadRoles(ctx context.Context, tenantID string, userID id.ID) ([]auth.Role, error) {
	query := `
		SELECT r.id, r.tenant_id, r.code, r.name, r.description, r.is_system,
			   r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND r.tenant_id = $2
		ORDER BY r.code
	`

	rows, err := r.txm.GetQuerier(ctx).Query(ctx, query, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
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

// LoadPermissions loads the user's flattened permission codes. Codes from
// multiple roles are de-duplicated by DISTINCT.
func (r *UserRepo) LoadPermissions(ctx context.Context, tenantID string, userID id.ID) ([]string, error) {
	query := `
		SELECT DISTINCT rp.permission_code
		FROM role_permissions rp
		JOIN user_roles ur ON ur.role_id = rp.role_id
		JOIN roles r ON r.id = rp.role_id
		WHERE ur.user_id = $1 AND r.tenant_id = $2
		ORDER BY rp.permission_code
	`

	rows, err := r.txm.GetQuerier(ctx).Query(ctx, query, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query user permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, code)
	}
	return perms, rows.Err()
}

// AssignRole assigns a role to a user.
func (r *UserRepo) AssignRole(ctx context.Context, tenantID string, userID, roleID id.ID, grantedBy string) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, granted_by, granted_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, role_id) DO NOTHING
	`

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, userID, roleID, grantedBy); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// RevokeRole revokes a role from a user.
func (r *UserRepo) RevokeRole(ctx context.Context, tenantID string, userID, roleID id.ID) error {
	query := `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, query, userID, roleID)
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("role assignment", roleID.String())
	}
	return nil
}
