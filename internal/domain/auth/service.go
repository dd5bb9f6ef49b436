package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"docuvault/internal/core/apperror"
	appctx "docuvault/internal/core/context"
	"docuvault/internal/core/id"
	"docuvault/internal/core/tx"
	"docuvault/internal/domain/access"
	"docuvault/internal/domain/audit"
	"docuvault/pkg/logger"
)

const (
	maxFailedLoginAttempts = 5
	lockoutDuration        = 15 * time.Minute
	minPasswordLength      = 8
)

// IdentityCache resolves cached identity snapshots and drops them after role
// or permission mutations, so stale grants do not outlive the change.
type IdentityCache interface {
	Resolve(ctx context.Context, tenantID string, userID id.ID) (*access.Identity, error)
	Invalidate(tenantID string, userID id.ID)
}

// Service implements authentication and role administration.
type Service struct {
	users    UserRepository
	roles    RoleRepository
	perms    PermissionRepository
	jwt      *JWTService
	resolver *access.Service
	audit    audit.Emitter
	txm      tx.Manager
	cache    IdentityCache
	now      func() time.Time
}

// NewService creates auth service.
func NewService(
	users UserRepository,
	roles RoleRepository,
	perms PermissionRepository,
	jwtSvc *JWTService,
	resolver *access.Service,
	auditSvc audit.Emitter,
	txm tx.Manager,
	cache IdentityCache,
) *Service {
	return &Service{
		users:    users,
		roles:    roles,
		perms:    perms,
		jwt:      jwtSvc,
		resolver: resolver,
		audit:    auditSvc,
		txm:      txm,
		cache:    cache,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates a user by tenant, email and password and issues
// an access token carrying a snapshot of roles and permissions.
func (s *Service) Login(ctx context.Context, creds Credentials) (*TokenPair, error) {
	log := logger.FromContext(ctx)

	if creds.TenantID == "" || creds.Email == "" || creds.Password == "" {
		return nil, apperror.NewValidation("tenant, email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, creds.TenantID, creds.Email)
	if err != nil {
		if apperror.IsNotFound(err) {
			// Do not reveal which part of the credentials was wrong.
			return nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}

	if err := user.CanLogin(); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(maxFailedLoginAttempts, lockoutDuration)
		if uerr := s.users.Update(ctx, user); uerr != nil {
			log.Errorw("failed to persist failed login attempt", "error", uerr, "user_id", user.ID)
		}
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	user.RecordSuccessfulLogin()
	if err := s.users.Update(ctx, user); err != nil {
		log.Errorw("failed to persist login timestamp", "error", err, "user_id", user.ID)
	}

	roles, err := s.users.LoadRoles(ctx, creds.TenantID, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	perms, err := s.users.LoadPermissions(ctx, creds.TenantID, user.ID)
	if err != nil {
		return nil, err
	}
	user.Permissions = perms

	token, expiresAt, err := s.jwt.GenerateAccessToken(user, user.MFAEnabled)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("issue token: %w", err))
	}

	return &TokenPair{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// RefreshToken re-issues an access token for the authenticated caller with a
// snapshot rebuilt from current role assignments. Unlike the login snapshot,
// this picks up grants changed since the token was issued.
func (s *Service) RefreshToken(ctx context.Context) (*TokenPair, error) {
	actor := appctx.GetUser(ctx)
	if actor == nil {
		return nil, apperror.NewInvalidIdentity("authenticated caller is required")
	}
	userID, err := id.Parse(actor.UserID)
	if err != nil {
		return nil, apperror.NewInvalidIdentity("malformed subject in token")
	}

	user, err := s.users.GetByID(ctx, actor.TenantID, userID)
	if err != nil {
		return nil, err
	}
	if err := user.CanLogin(); err != nil {
		return nil, err
	}

	identity, err := s.cache.Resolve(ctx, actor.TenantID, userID)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.jwt.GenerateFromSnapshot(&appctx.UserContext{
		UserID:      identity.UserID,
		TenantID:    identity.TenantID,
		Email:       user.Email,
		RoleIDs:     identity.RoleIDs,
		Permissions: identity.Permissions,
		MFAActive:   identity.MFAActive,
	})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("issue token: %w", err))
	}

	return &TokenPair{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// Register creates a new user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*User, error) {
	actor := appctx.GetUser(ctx)
	if err := s.authorize(ctx, actor, access.PermUserManage); err != nil {
		return nil, err
	}

	if len(password) < minPasswordLength {
		return nil, apperror.NewValidation("password must be at least 8 characters")
	}

	existing, err := s.users.GetByEmail(ctx, actor.TenantID, email)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewDuplicate("user", "email", email)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hash password: %w", err))
	}

	user := NewUser(actor.TenantID, email, string(passwordHash))
	user.DisplayName = displayName
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := s.users.Create(txCtx, user); err != nil {
			return err
		}
		return s.recordAudit(txCtx, actor, "user.create", user.ID, audit.Metadata{})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AssignRole grants a role to a user and invalidates the cached identity.
// The change takes effect for new tokens only: snapshots already issued
// keep their claims until expiry.
func (s *Service) AssignRole(ctx context.Context, userID, roleID id.ID) error {
	actor := appctx.GetUser(ctx)
	if err := s.authorize(ctx, actor, access.PermRoleAssign); err != nil {
		return err
	}

	if _, err := s.users.GetByID(ctx, actor.TenantID, userID); err != nil {
		return err
	}
	role, err := s.roles.GetByID(ctx, actor.TenantID, roleID)
	if err != nil {
		return err
	}

	err = s.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := s.users.AssignRole(txCtx, actor.TenantID, userID, roleID, actor.UserID); err != nil {
			return err
		}
		return s.recordAudit(txCtx, actor, "user.assign_role", userID, audit.Metadata{
			RoleID: roleID.String(),
			Reason: role.Code,
		})
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(actor.TenantID, userID)
	return nil
}

// RevokeRole removes a role from a user and invalidates the cached identity.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID id.ID) error {
	actor := appctx.GetUser(ctx)
	if err := s.authorize(ctx, actor, access.PermRoleAssign); err != nil {
		return err
	}

	err := s.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := s.users.RevokeRole(txCtx, actor.TenantID, userID, roleID); err != nil {
			return err
		}
		return s.recordAudit(txCtx, actor, "user.revoke_role", userID, audit.Metadata{
			RoleID: roleID.String(),
		})
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(actor.TenantID, userID)
	return nil
}

// ListRoles returns the tenant's role catalog.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	actor := appctx.GetUser(ctx)
	if err := s.authorize(ctx, actor, access.PermRoleAssign); err != nil {
		return nil, err
	}
	return s.roles.List(ctx, actor.TenantID)
}

// GetUser returns a user with loaded roles.
func (s *Service) GetUser(ctx context.Context, userID id.ID) (*User, error) {
	actor := appctx.GetUser(ctx)
	if err := s.authorize(ctx, actor, access.PermUserManage); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, actor.TenantID, userID)
	if err != nil {
		return nil, err
	}
	roles, err := s.users.LoadRoles(ctx, actor.TenantID, userID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return user, nil
}

func (s *Service) authorize(ctx context.Context, actor *appctx.UserContext, permission string) error {
	return s.resolver.Authorize(ctx, access.IdentityFromContext(actor), permission, nil, nil)
}

func (s *Service) recordAudit(ctx context.Context, actor *appctx.UserContext, action string, entityID id.ID, meta audit.Metadata) error {
	meta.SchemaVersion = audit.MetadataSchemaVersion
	entry := audit.Entry{
		TenantID:   actor.TenantID,
		ActorID:    actor.UserID,
		ActorEmail: actor.Email,
		Action:     action,
		EntityType: audit.EntityUser,
		EntityID:   entityID,
		Metadata:   meta,
		CreatedAt:  s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return apperror.NewInternal(fmt.Errorf("audit user change: %w", err))
	}
	return nil
}
