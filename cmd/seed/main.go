// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"docuvault/internal/core/apperror"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/access"
	"docuvault/internal/domain/auth"
	"docuvault/internal/infrastructure/storage/postgres"
	"docuvault/internal/infrastructure/storage/postgres/auth_repo"
	"docuvault/pkg/logger"
)

// Built-in role definitions seeded per tenant.
var builtinRoles = []struct {
	code        string
	name        string
	permissions []string
}{
	{
		code: "admin",
		name: "Administrator",
		permissions: []string{
			access.PermDocumentRead, access.PermDocumentCreate, access.PermDocumentUpdate,
			access.PermDocumentDelete, access.PermDocumentUploadVersion,
			access.PermDocumentSubmit, access.PermDocumentWithdraw,
			access.PermDocumentApprove, access.PermDocumentReject, access.PermDocumentObsolete,
			access.PermFolderManage, access.PermRoleAssign, access.PermUserManage,
			access.PermAuditView,
		},
	},
	{
		code: "editor",
		name: "Editor",
		permissions: []string{
			access.PermDocumentRead, access.PermDocumentCreate, access.PermDocumentUpdate,
			access.PermDocumentUploadVersion, access.PermDocumentSubmit, access.PermDocumentWithdraw,
		},
	},
	{
		code: "approver",
		name: "Approver",
		permissions: []string{
			access.PermDocumentRead, access.PermDocumentApprove,
			access.PermDocumentReject, access.PermDocumentObsolete,
		},
	},
	{
		code:        "viewer",
		name:        "Viewer",
		permissions: []string{access.PermDocumentRead},
	},
}

// Human-readable names for the global permission catalog.
var permissionNames = map[string]string{
	access.PermDocumentRead:           "Read documents",
	access.PermDocumentCreate:         "Create documents",
	access.PermDocumentUpdate:         "Update documents",
	access.PermDocumentDelete:         "Delete documents",
	access.PermDocumentUploadVersion:  "Upload document versions",
	access.PermDocumentSubmit:         "Submit documents for approval",
	access.PermDocumentWithdraw:       "Withdraw submitted documents",
	access.PermDocumentApprove:        "Approve documents",
	access.PermDocumentReject:         "Reject documents",
	access.PermDocumentObsolete:       "Obsolete approved documents",
	access.PermFolderManage:           "Manage folders and folder grants",
	access.PermRoleAssign:             "Assign and revoke roles",
	access.PermUserManage:             "Manage users",
	access.PermAuditView:              "View audit history",
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txm := postgres.NewTxManager(pool)
	userRepo := auth_repo.NewUserRepo(txm)
	roleRepo := auth_repo.NewRoleRepo(txm)
	permRepo := auth_repo.NewPermissionRepo(txm)

	tenantID := os.Getenv("SEED_TENANT")
	if tenantID == "" {
		tenantID = "acme"
	}

	if err := seedPermissions(ctx, permRepo, log); err != nil {
		log.Fatalw("failed to seed permissions", "error", err)
	}

	roleIDs, err := seedRoles(ctx, roleRepo, tenantID, log)
	if err != nil {
		log.Fatalw("failed to seed roles", "error", err, "tenant", tenantID)
	}

	if err := seedAdminUser(ctx, userRepo, tenantID, roleIDs["admin"], log); err != nil {
		log.Fatalw("failed to seed admin user", "error", err, "tenant", tenantID)
	}

	log.Info("seeding completed successfully")
}

func seedPermissions(ctx context.Context, perms auth.PermissionRepository, log *logger.Logger) error {
	for code, name := range permissionNames {
		if err := perms.Ensure(ctx, &auth.Permission{Code: code, Name: name}); err != nil {
			return fmt.Errorf("ensure permission %s: %w", code, err)
		}
	}
	log.Infow("permission catalog seeded", "count", len(permissionNames))
	return nil
}

func seedRoles(ctx context.Context, roles auth.RoleRepository, tenantID string, log *logger.Logger) (map[string]string, error) {
	roleIDs := make(map[string]string, len(builtinRoles))

	for _, def := range builtinRoles {
		role, err := roles.GetByCode(ctx, tenantID, def.code)
		if err == nil {
			log.Infow("role already exists", "code", def.code, "role_id", role.ID)
			roleIDs[def.code] = role.ID.String()
			continue
		}
		if !apperror.IsNotFound(err) {
			return nil, fmt.Errorf("check role %s: %w", def.code, err)
		}

		role = auth.NewRole(tenantID, def.code, def.name)
		role.IsSystem = true
		if err := roles.Create(ctx, role); err != nil {
			return nil, fmt.Errorf("create role %s: %w", def.code, err)
		}
		for _, code := range def.permissions {
			if err := roles.AssignPermission(ctx, tenantID, role.ID, code); err != nil {
				return nil, fmt.Errorf("grant %s to role %s: %w", code, def.code, err)
			}
		}
		log.Infow("role created", "code", def.code, "role_id", role.ID, "permissions", len(def.permissions))
		roleIDs[def.code] = role.ID.String()
	}

	return roleIDs, nil
}

func seedAdminUser(ctx context.Context, users auth.UserRepository, tenantID, adminRoleID string, log *logger.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@docuvault.local"
	}
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "Admin123!"
	}

	existing, err := users.GetByEmail(ctx, tenantID, adminEmail)
	if err == nil {
		log.Infow("admin user already exists", "email", adminEmail, "user_id", existing.ID)
		return nil
	}
	if !apperror.IsNotFound(err) {
		return fmt.Errorf("check admin exists: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	admin := auth.NewUser(tenantID, adminEmail, string(passwordHash))
	admin.DisplayName = "System Administrator"
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	roleID, err := id.Parse(adminRoleID)
	if err != nil {
		return fmt.Errorf("parse admin role id: %w", err)
	}
	if err := users.AssignRole(ctx, tenantID, admin.ID, roleID, admin.ID.String()); err != nil {
		return fmt.Errorf("assign admin role: %w", err)
	}

	log.Infow("admin user created", "email", adminEmail, "user_id", admin.ID)
	return nil
}
