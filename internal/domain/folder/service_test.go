package folder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type memRepo struct {
	folders map[id.ID]*Folder
	grants  map[id.ID]map[string]access.FolderPermission
	hasDocs map[id.ID]bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		folders: make(map[id.ID]*Folder),
		grants:  make(map[id.ID]map[string]access.FolderPermission),
		hasDocs: make(map[id.ID]bool),
	}
}

func (m *memRepo) Create(ctx context.Context, f *Folder) error {
	m.folders[f.ID] = f
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, tenantID string, folderID id.ID) (*Folder, error) {
	f, ok := m.folders[folderID]
	if !ok || f.TenantID != tenantID || f.DeletionMark {
		return nil, apperror.NewNotFound("folder", folderID)
	}
	return f, nil
}

func (m *memRepo) List(ctx context.Context, tenantID string, parentID *id.ID) ([]Folder, error) {
	var out []Folder
	for _, f := range m.folders {
		if f.TenantID != tenantID || f.DeletionMark {
			continue
		}
		switch {
		case parentID == nil && f.ParentID == nil:
			out = append(out, *f)
		case parentID != nil && f.ParentID != nil && *f.ParentID == *parentID:
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *memRepo) SoftDelete(ctx context.Context, tenantID string, folderID id.ID) error {
	f, ok := m.folders[folderID]
	if !ok || f.TenantID != tenantID {
		return apperror.NewNotFound("folder", folderID)
	}
	if m.hasDocs[folderID] {
		return apperror.NewConflict("folder still contains documents")
	}
	f.DeletionMark = true
	return nil
}

func (m *memRepo) Grant(ctx context.Context, grant *access.FolderPermission) error {
	if m.grants[grant.FolderID] == nil {
		m.grants[grant.FolderID] = make(map[string]access.FolderPermission)
	}
	m.grants[grant.FolderID][grant.RoleID] = *grant
	return nil
}

func (m *memRepo) Revoke(ctx context.Context, tenantID string, folderID id.ID, roleID string) error {
	if _, ok := m.grants[folderID][roleID]; !ok {
		return apperror.NewNotFound("folder grant", roleID)
	}
	delete(m.grants[folderID], roleID)
	return nil
}

func (m *memRepo) ListGrants(ctx context.Context, tenantID string, folderID id.ID) ([]access.FolderPermission, error) {
	var out []access.FolderPermission
	for _, g := range m.grants[folderID] {
		out = append(out, g)
	}
	return out, nil
}

func (m *memRepo) ListForFolder(ctx context.Context, tenantID string, folderID id.ID) ([]access.FolderPermission, error) {
	return m.ListGrants(ctx, tenantID, folderID)
}

type memEmitter struct {
	entries []audit.Entry
}

func (m *memEmitter) Record(ctx context.Context, entry audit.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func newTestService(t *testing.T) (*Service, *memRepo, *memEmitter) {
	t.Helper()
	repo := newMemRepo()
	emitter := &memEmitter{}
	resolver := access.NewService(repo, emitter)
	return NewService(repo, resolver, emitter, passTxm{}), repo, emitter
}

func managerContext() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:      "admin-1",
		TenantID:    "acme",
		Permissions: []string{access.PermFolderManage, access.PermDocumentRead},
	})
}

func TestFolderCreate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := managerContext()

	root, err := svc.Create(ctx, "Policies", nil)
	require.NoError(t, err)
	assert.Nil(t, root.ParentID)
	assert.Equal(t, "admin-1", root.CreatedBy)

	child, err := svc.Create(ctx, "Procedures", &root.ID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, root.ID, *child.ParentID)
}

func TestFolderCreate_UnknownParent(t *testing.T) {
	svc, _, _ := newTestService(t)
	missing := id.New()

	_, err := svc.Create(managerContext(), "Orphan", &missing)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestFolderCreate_RequiresManage(t *testing.T) {
	svc, _, emitter := newTestService(t)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "user-1", TenantID: "acme",
	})

	_, err := svc.Create(ctx, "Policies", nil)
	require.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
	require.Len(t, emitter.entries, 1)
	assert.Equal(t, "access.denied", emitter.entries[0].Action)
}

func TestFolderGrantAndRevoke(t *testing.T) {
	svc, repo, emitter := newTestService(t)
	ctx := managerContext()

	f, err := svc.Create(ctx, "Policies", nil)
	require.NoError(t, err)

	grant, err := svc.Grant(ctx, f.ID, "role-editor", access.LevelWrite)
	require.NoError(t, err)
	assert.Equal(t, access.LevelWrite, grant.Level)
	assert.Equal(t, "admin-1", grant.GrantedBy)

	rows, err := svc.ListGrants(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, svc.Revoke(ctx, f.ID, "role-editor"))
	rows, err = repo.ListGrants(context.Background(), "acme", f.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	var actions []string
	for _, e := range emitter.entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"folder.grant_access", "folder.revoke_access"}, actions)
}

func TestFolderGrant_InvalidLevel(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := managerContext()

	f, err := svc.Create(ctx, "Policies", nil)
	require.NoError(t, err)

	_, err = svc.Grant(ctx, f.ID, "role-editor", access.Level("ADMIN"))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestFolderRevoke_MissingGrant(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := managerContext()

	f, err := svc.Create(ctx, "Policies", nil)
	require.NoError(t, err)

	err = svc.Revoke(ctx, f.ID, "role-nobody")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestFolderGet_ReadViaGrant(t *testing.T) {
	svc, _, _ := newTestService(t)
	manager := managerContext()

	f, err := svc.Create(manager, "Policies", nil)
	require.NoError(t, err)
	_, err = svc.Grant(manager, f.ID, "role-viewer", access.LevelRead)
	require.NoError(t, err)

	// No RBAC read code, but the role grant opens the folder.
	viewer := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "user-2", TenantID: "acme", RoleIDs: []string{"role-viewer"},
	})
	got, err := svc.Get(viewer, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)

	// Without the role the same caller is denied.
	stranger := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "user-3", TenantID: "acme",
	})
	_, err = svc.Get(stranger, f.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestFolderGet_CrossTenantNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	f, err := svc.Create(managerContext(), "Policies", nil)
	require.NoError(t, err)

	other := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "user-9", TenantID: "globex",
		Permissions: []string{access.PermDocumentRead},
	})
	_, err = svc.Get(other, f.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestFolderList(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := managerContext()

	root, err := svc.Create(ctx, "Policies", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "Procedures", &root.ID)
	require.NoError(t, err)

	roots, err := svc.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "Policies", roots[0].Name)

	children, err := svc.List(ctx, &root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Procedures", children[0].Name)
}
