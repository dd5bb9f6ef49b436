package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"docuvault/internal/core/apperror"
	appctx "docuvault/internal/core/context"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/access"
	"docuvault/internal/domain/audit"
)

type passTxm struct{}

func (passTxm) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memUsers struct {
	byID        map[id.ID]*User
	roles       map[id.ID][]Role
	permissions map[id.ID][]string
}

func newMemUsers() *memUsers {
	return &memUsers{
		byID:        make(map[id.ID]*User),
		roles:       make(map[id.ID][]Role),
		permissions: make(map[id.ID][]string),
	}
}

func (m *memUsers) Create(ctx context.Context, user *User) error {
	clone := *user
	m.byID[user.ID] = &clone
	return nil
}

func (m *memUsers) GetByID(ctx context.Context, tenantID string, userID id.ID) (*User, error) {
	u, ok := m.byID[userID]
	if !ok || u.TenantID != tenantID {
		return nil, apperror.NewNotFound("user", userID)
	}
	clone := *u
	return &clone, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, tenantID, email string) (*User, error) {
	for _, u := range m.byID {
		if u.TenantID == tenantID && u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, apperror.NewNotFound("user", email)
}

func (m *memUsers) Update(ctx context.Context, user *User) error {
	stored, ok := m.byID[user.ID]
	if !ok || stored.Version != user.Version {
		return apperror.NewStateMismatch("user", user.ID)
	}
	clone := *user
	clone.Version++
	m.byID[user.ID] = &clone
	user.Version++
	return nil
}

func (m *memUsers) LoadRoles(ctx context.Context, tenantID string, userID id.ID) ([]Role, error) {
	return m.roles[userID], nil
}

func (m *memUsers) LoadPermissions(ctx context.Context, tenantID string, userID id.ID) ([]string, error) {
	return m.permissions[userID], nil
}

func (m *memUsers) AssignRole(ctx context.Context, tenantID string, userID, roleID id.ID, grantedBy string) error {
	m.roles[userID] = append(m.roles[userID], Role{ID: roleID, TenantID: tenantID})
	return nil
}

func (m *memUsers) RevokeRole(ctx context.Context, tenantID string, userID, roleID id.ID) error {
	kept := m.roles[userID][:0]
	found := false
	for _, r := range m.roles[userID] {
		if r.ID == roleID {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return apperror.NewNotFound("role assignment", roleID)
	}
	m.roles[userID] = kept
	return nil
}

type memRoles struct {
	byID map[id.ID]*Role
}

func (m *memRoles) Create(ctx context.Context, role *Role) error {
	m.byID[role.ID] = role
	return nil
}

func (m *memRoles) GetByID(ctx context.Context, tenantID string, roleID id.ID) (*Role, error) {
	r, ok := m.byID[roleID]
	if !ok || r.TenantID != tenantID {
		return nil, apperror.NewNotFound("role", roleID)
	}
	return r, nil
}

func (m *memRoles) GetByCode(ctx context.Context, tenantID, code string) (*Role, error) {
	for _, r := range m.byID {
		if r.TenantID == tenantID && r.Code == code {
			return r, nil
		}
	}
	return nil, apperror.NewNotFound("role", code)
}

func (m *memRoles) List(ctx context.Context, tenantID string) ([]Role, error) {
	var out []Role
	for _, r := range m.byID {
		if r.TenantID == tenantID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRoles) AssignPermission(ctx context.Context, tenantID string, roleID id.ID, permissionCode string) error {
	return nil
}

func (m *memRoles) RevokePermission(ctx context.Context, tenantID string, roleID id.ID, permissionCode string) error {
	return nil
}

type emptyACL struct{}

func (emptyACL) ListForFolder(ctx context.Context, tenantID string, folderID id.ID) ([]access.FolderPermission, error) {
	return nil, nil
}

type memEmitter struct {
	entries []audit.Entry
}

func (m *memEmitter) Record(ctx context.Context, entry audit.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

// memIdentityCache resolves straight from the user repo, tracking
// invalidations.
type memIdentityCache struct {
	users       *memUsers
	invalidated []id.ID
}

func (m *memIdentityCache) Resolve(ctx context.Context, tenantID string, userID id.ID) (*access.Identity, error) {
	user, err := m.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	roles := m.users.roles[userID]
	roleIDs := make([]string, 0, len(roles))
	for _, r := range roles {
		roleIDs = append(roleIDs, r.ID.String())
	}
	return &access.Identity{
		UserID:      userID.String(),
		TenantID:    tenantID,
		RoleIDs:     roleIDs,
		Permissions: m.users.permissions[userID],
		MFAActive:   user.MFAEnabled,
	}, nil
}

func (m *memIdentityCache) Invalidate(tenantID string, userID id.ID) {
	m.invalidated = append(m.invalidated, userID)
}

type authFixture struct {
	svc         *Service
	users       *memUsers
	roles       *memRoles
	emitter     *memEmitter
	invalidator *memIdentityCache
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	users := newMemUsers()
	roles := &memRoles{byID: make(map[id.ID]*Role)}
	emitter := &memEmitter{}
	invalidator := &memIdentityCache{users: users}
	resolver := access.NewService(emptyACL{}, emitter)
	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))

	svc := NewService(users, roles, nil, jwtSvc, resolver, emitter, passTxm{}, invalidator)
	return &authFixture{svc: svc, users: users, roles: roles, emitter: emitter, invalidator: invalidator}
}

func seedUser(t *testing.T, fx *authFixture, email, password string) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := NewUser("acme", email, string(hash))
	require.NoError(t, fx.users.Create(context.Background(), user))
	return user
}

func adminContext() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:      "admin-1",
		TenantID:    "acme",
		Email:       "admin@acme.test",
		Permissions: []string{access.PermUserManage, access.PermRoleAssign},
	})
}

func TestLogin_Success(t *testing.T) {
	fx := newAuthFixture(t)
	user := seedUser(t, fx, "user@acme.test", "correct horse")
	fx.users.permissions[user.ID] = []string{"DOCUMENT_READ"}

	pair, err := fx.svc.Login(context.Background(), Credentials{
		TenantID: "acme", Email: "user@acme.test", Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)

	snapshot, err := NewJWTService(DefaultJWTConfig("test-secret")).ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), snapshot.UserID)
	assert.Equal(t, []string{"DOCUMENT_READ"}, snapshot.Permissions)
}

func TestLogin_WrongPassword(t *testing.T) {
	fx := newAuthFixture(t)
	user := seedUser(t, fx, "user@acme.test", "correct horse")

	_, err := fx.svc.Login(context.Background(), Credentials{
		TenantID: "acme", Email: "user@acme.test", Password: "wrong",
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)

	stored := fx.users.byID[user.ID]
	assert.Equal(t, 1, stored.FailedLoginAttempts)
}

func TestLogin_UnknownUserIsUnauthorized(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.Login(context.Background(), Credentials{
		TenantID: "acme", Email: "nobody@acme.test", Password: "whatever",
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	// Unknown user and wrong password are indistinguishable to the caller.
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	fx := newAuthFixture(t)
	user := seedUser(t, fx, "user@acme.test", "correct horse")

	creds := Credentials{TenantID: "acme", Email: "user@acme.test", Password: "wrong"}
	for i := 0; i < maxFailedLoginAttempts; i++ {
		_, err := fx.svc.Login(context.Background(), creds)
		require.Error(t, err)
	}

	stored := fx.users.byID[user.ID]
	require.NotNil(t, stored.LockedUntil)

	// Even the right password is rejected while locked.
	_, err := fx.svc.Login(context.Background(), Credentials{
		TenantID: "acme", Email: "user@acme.test", Password: "correct horse",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestLogin_CrossTenant(t *testing.T) {
	fx := newAuthFixture(t)
	seedUser(t, fx, "user@acme.test", "correct horse")

	_, err := fx.svc.Login(context.Background(), Credentials{
		TenantID: "globex", Email: "user@acme.test", Password: "correct horse",
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

func TestRegister(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := adminContext()

	user, err := fx.svc.Register(ctx, "new@acme.test", "long enough", "New User")
	require.NoError(t, err)
	assert.Equal(t, "acme", user.TenantID)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "long enough", user.PasswordHash)

	// Duplicate email within the tenant is rejected.
	_, err = fx.svc.Register(ctx, "new@acme.test", "long enough", "Clone")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
}

func TestRegister_ShortPassword(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.Register(adminContext(), "new@acme.test", "short", "New User")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestRegister_RequiresPermission(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "user-1", TenantID: "acme",
	})

	_, err := fx.svc.Register(ctx, "new@acme.test", "long enough", "New User")
	require.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestRegister_UnauthenticatedIsError(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.Register(context.Background(), "new@acme.test", "long enough", "")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidIdentity, appErr.Code)
}

func TestAssignRole_InvalidatesCache(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := adminContext()

	user, err := fx.svc.Register(ctx, "new@acme.test", "long enough", "")
	require.NoError(t, err)

	role := NewRole("acme", "editor", "Editor")
	require.NoError(t, fx.roles.Create(context.Background(), role))

	require.NoError(t, fx.svc.AssignRole(ctx, user.ID, role.ID))
	assert.Contains(t, fx.invalidator.invalidated, user.ID)

	var actions []string
	for _, e := range fx.emitter.entries {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, "user.assign_role")

	require.NoError(t, fx.svc.RevokeRole(ctx, user.ID, role.ID))
	assert.Len(t, fx.invalidator.invalidated, 2)
}

func TestRefreshToken_PicksUpNewGrants(t *testing.T) {
	fx := newAuthFixture(t)
	admin := adminContext()

	user, err := fx.svc.Register(admin, "new@acme.test", "long enough", "")
	require.NoError(t, err)

	// Caller context mimics a token issued before any grants existed.
	callerCtx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:   user.ID.String(),
		TenantID: "acme",
		Email:    "new@acme.test",
	})

	role := NewRole("acme", "editor", "Editor")
	require.NoError(t, fx.roles.Create(context.Background(), role))
	require.NoError(t, fx.svc.AssignRole(admin, user.ID, role.ID))
	fx.users.permissions[user.ID] = []string{"DOCUMENT_READ", "DOCUMENT_UPDATE"}

	pair, err := fx.svc.RefreshToken(callerCtx)
	require.NoError(t, err)

	snapshot, err := NewJWTService(DefaultJWTConfig("test-secret")).ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{role.ID.String()}, snapshot.RoleIDs)
	assert.Equal(t, []string{"DOCUMENT_READ", "DOCUMENT_UPDATE"}, snapshot.Permissions)
}

func TestRefreshToken_Unauthenticated(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.RefreshToken(context.Background())
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidIdentity, appErr.Code)
}

func TestAssignRole_UnknownRole(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := adminContext()

	user, err := fx.svc.Register(ctx, "new@acme.test", "long enough", "")
	require.NoError(t, err)

	err = fx.svc.AssignRole(ctx, user.ID, id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
