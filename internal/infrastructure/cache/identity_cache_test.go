package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuvault/internal/core/apperror"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/auth"
)

type stubUsers struct {
	users map[id.ID]*auth.User
	perms map[id.ID][]string
	loads int
}

func (s *stubUsers) Create(ctx context.Context, user *auth.User) error { return nil }

func (s *stubUsers) GetByID(ctx context.Context, tenantID string, userID id.ID) (*auth.User, error) {
	s.loads++
	u, ok := s.users[userID]
	if !ok || u.TenantID != tenantID {
		return nil, apperror.NewNotFound("user", userID)
	}
	clone := *u
	return &clone, nil
}

func (s *stubUsers) GetByEmail(ctx context.Context, tenantID, email string) (*auth.User, error) {
	return nil, apperror.NewNotFound("user", email)
}

func (s *stubUsers) Update(ctx context.Context, user *auth.User) error { return nil }

func (s *stubUsers) LoadRoles(ctx context.Context, tenantID string, userID id.ID) ([]auth.Role, error) {
	return nil, nil
}

func (s *stubUsers) LoadPermissions(ctx context.Context, tenantID string, userID id.ID) ([]string, error) {
	return s.perms[userID], nil
}

func (s *stubUsers) AssignRole(ctx context.Context, tenantID string, userID, roleID id.ID, grantedBy string) error {
	return nil
}

func (s *stubUsers) RevokeRole(ctx context.Context, tenantID string, userID, roleID id.ID) error {
	return nil
}

func newStubUsers(user *auth.User, perms []string) *stubUsers {
	return &stubUsers{
		users: map[id.ID]*auth.User{user.ID: user},
		perms: map[id.ID][]string{user.ID: perms},
	}
}

func TestIdentityCache_HitAvoidsReload(t *testing.T) {
	user := auth.NewUser("acme", "user@acme.test", "hash")
	users := newStubUsers(user, []string{"DOCUMENT_READ"})

	c, err := NewIdentityCache(users, 0, 0)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := c.Resolve(ctx, "acme", user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"DOCUMENT_READ"}, first.Permissions)
	assert.Equal(t, 1, users.loads)

	second, err := c.Resolve(ctx, "acme", user.ID)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, users.loads, "second resolve must come from cache")
}

func TestIdentityCache_InvalidateForcesReload(t *testing.T) {
	user := auth.NewUser("acme", "user@acme.test", "hash")
	users := newStubUsers(user, []string{"DOCUMENT_READ"})

	c, err := NewIdentityCache(users, 0, 0)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Resolve(ctx, "acme", user.ID)
	require.NoError(t, err)

	users.perms[user.ID] = []string{"DOCUMENT_READ", "DOCUMENT_UPDATE"}
	c.Invalidate("acme", user.ID)

	identity, err := c.Resolve(ctx, "acme", user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"DOCUMENT_READ", "DOCUMENT_UPDATE"}, identity.Permissions)
	assert.Equal(t, 2, users.loads)
}

func TestIdentityCache_TTLExpiry(t *testing.T) {
	user := auth.NewUser("acme", "user@acme.test", "hash")
	users := newStubUsers(user, nil)

	c, err := NewIdentityCache(users, 0, time.Minute)
	require.NoError(t, err)

	current := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	ctx := context.Background()
	_, err = c.Resolve(ctx, "acme", user.ID)
	require.NoError(t, err)

	current = current.Add(30 * time.Second)
	_, err = c.Resolve(ctx, "acme", user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, users.loads)

	current = current.Add(2 * time.Minute)
	_, err = c.Resolve(ctx, "acme", user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, users.loads, "stale entry must reload")
}

func TestIdentityCache_UnknownUser(t *testing.T) {
	user := auth.NewUser("acme", "user@acme.test", "hash")
	users := newStubUsers(user, nil)

	c, err := NewIdentityCache(users, 0, 0)
	require.NoError(t, err)

	_, err = c.Resolve(context.Background(), "acme", id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	// Cross-tenant lookups behave as absent.
	_, err = c.Resolve(context.Background(), "globex", user.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
