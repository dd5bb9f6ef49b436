package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuvault/internal/core/apperror"
	appctx "docuvault/internal/core/context"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/audit"
)

// passTxm satisfies tx.Manager without a database.
type passTxm struct{}

func (passTxm) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockGateway struct {
	state *DocumentState

	// updateAffected is popped per UpdateStatus call; empty means 1.
	updateAffected []int64
	updateCalls    int

	supersedeAffected int64
	supersedeSet      bool
	inserted          *DocumentState
	findErr           error
}

func (m *mockGateway) FindState(ctx context.Context, tenantID string, docID id.ID) (*DocumentState, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.state == nil || m.state.TenantID != tenantID || m.state.ID != docID {
		return nil, apperror.NewNotFound("document", docID)
	}
	clone := *m.state
	return &clone, nil
}

func (m *mockGateway) UpdateStatus(ctx context.Context, tenantID string, docID id.ID, expectedVersion int, expectedStatus, newStatus Status) (int64, error) {
	m.updateCalls++
	if len(m.updateAffected) > 0 {
		n := m.updateAffected[0]
		m.updateAffected = m.updateAffected[1:]
		if n == 0 {
			return 0, nil
		}
	}
	if m.state.Version != expectedVersion || m.state.Status != expectedStatus {
		return 0, nil
	}
	m.state.Status = newStatus
	m.state.Version++
	return 1, nil
}

func (m *mockGateway) MarkSuperseded(ctx context.Context, tenantID string, docID id.ID, expectedVersion int, successorID id.ID) (int64, error) {
	if m.supersedeSet {
		return m.supersedeAffected, nil
	}
	if m.state.Version != expectedVersion || m.state.SupersededByID != nil {
		return 0, nil
	}
	m.state.SupersededByID = &successorID
	m.state.Version++
	return 1, nil
}

func (m *mockGateway) InsertRevision(ctx context.Context, state *DocumentState) error {
	m.inserted = state
	return nil
}

type mockEmitter struct {
	entries []audit.Entry
	err     error
}

func (m *mockEmitter) Record(ctx context.Context, entry audit.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func testActor() *appctx.UserContext {
	return &appctx.UserContext{
		UserID:   "user-1",
		TenantID: "acme",
		Email:    "user@acme.test",
	}
}

func draftState() *DocumentState {
	return &DocumentState{
		ID:       id.New(),
		TenantID: "acme",
		FolderID: id.New(),
		Title:    "Quality Manual",
		Status:   StatusDraft,
		Version:  1,
	}
}

func newTestEngine(gw *mockGateway, em *mockEmitter, cfg Config) *Engine {
	return NewEngine(gw, em, passTxm{}, nil, cfg)
}

func TestEngineTransition_Success(t *testing.T) {
	gw := &mockGateway{state: draftState()}
	em := &mockEmitter{}
	engine := newTestEngine(gw, em, DefaultConfig())

	summary, err := engine.Transition(context.Background(), "acme", gw.state.ID, ActionSubmit, testActor())
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, summary.FromStatus)
	assert.Equal(t, StatusSubmitted, summary.ToStatus)
	assert.Equal(t, 2, summary.Version)
	assert.Equal(t, StatusSubmitted, gw.state.Status)

	require.Len(t, em.entries, 1, "exactly one audit record per transition")
	entry := em.entries[0]
	assert.Equal(t, "document.submit", entry.Action)
	assert.Equal(t, "user-1", entry.ActorID)
	assert.Equal(t, string(StatusDraft), entry.Metadata.FromStatus)
	assert.Equal(t, string(StatusSubmitted), entry.Metadata.ToStatus)
}

func TestEngineTransition_InvalidTransition(t *testing.T) {
	gw := &mockGateway{state: draftState()}
	em := &mockEmitter{}
	engine := newTestEngine(gw, em, DefaultConfig())

	_, err := engine.Transition(context.Background(), "acme", gw.state.ID, ActionApprove, testActor())
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Empty(t, em.entries, "failed transition must not audit")
	assert.Equal(t, StatusDraft, gw.state.Status)
}

func TestEngineTransition_RetryOnStateMismatch(t *testing.T) {
	gw := &mockGateway{state: draftState(), updateAffected: []int64{0, 1}}
	em := &mockEmitter{}
	engine := newTestEngine(gw, em, Config{MaxRetries: 3})

	summary, err := engine.Transition(context.Background(), "acme", gw.state.ID, ActionSubmit, testActor())
	require.NoError(t, err, "second attempt should win")
	assert.Equal(t, StatusSubmitted, summary.ToStatus)
	assert.Equal(t, 2, gw.updateCalls)
	assert.Len(t, em.entries, 1)
}

func TestEngineTransition_RetriesExhausted(t *testing.T) {
	gw := &mockGateway{state: draftState(), updateAffected: []int64{0, 0, 0, 0}}
	em := &mockEmitter{}
	engine := newTestEngine(gw, em, Config{MaxRetries: 3})

	_, err := engine.Transition(context.Background(), "acme", gw.state.ID, ActionSubmit, testActor())
	require.Error(t, err)
	assert.True(t, apperror.IsStateMismatch(err))
	assert.Equal(t, 3, gw.updateCalls, "bounded retries")
	assert.Empty(t, em.entries)
}

func TestEngineTransition_AuditFailureAborts(t *testing.T) {
	gw := &mockGateway{state: draftState()}
	em := &mockEmitter{err: errors.New("audit store down")}
	engine := newTestEngine(gw, em, DefaultConfig())

	_, err := engine.Transition(context.Background(), "acme", gw.state.ID, ActionSubmit, testActor())
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInternal, appErr.Code)
}

func TestEngineTransition_NilActor(t *testing.T) {
	gw := &mockGateway{state: draftState()}
	engine := newTestEngine(gw, &mockEmitter{}, DefaultConfig())

	_, err := engine.Transition(context.Background(), "acme", gw.state.ID, ActionSubmit, nil)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidIdentity, appErr.Code)
	assert.Equal(t, 0, gw.updateCalls)
}

func TestEngineTransition_CrossTenantIsNotFound(t *testing.T) {
	gw := &mockGateway{state: draftState()}
	engine := newTestEngine(gw, &mockEmitter{}, DefaultConfig())

	_, err := engine.Transition(context.Background(), "globex", gw.state.ID, ActionSubmit, testActor())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestEngineNewRevision_Success(t *testing.T) {
	state := draftState()
	state.Status = StatusApproved
	state.RevisionNo = 2
	gw := &mockGateway{state: state}
	em := &mockEmitter{}
	engine := newTestEngine(gw, em, DefaultConfig())

	successor, err := engine.NewRevision(context.Background(), "acme", state.ID, testActor())
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, successor.Status)
	assert.Equal(t, state.ID, *successor.RevisionOfID)
	assert.Equal(t, 3, successor.RevisionNo)
	assert.Equal(t, "user-1", successor.CreatedBy)
	assert.Equal(t, state.FolderID, successor.FolderID)
	require.NotNil(t, gw.state.SupersededByID)
	assert.Equal(t, successor.ID, *gw.state.SupersededByID)

	require.Len(t, em.entries, 1)
	assert.Equal(t, "document.revise", em.entries[0].Action)
	assert.Equal(t, successor.ID.String(), em.entries[0].Metadata.SuccessorID)
}

func TestEngineNewRevision_AlreadySuperseded(t *testing.T) {
	state := draftState()
	state.Status = StatusApproved
	prior := id.New()
	state.SupersededByID = &prior
	gw := &mockGateway{state: state}
	engine := newTestEngine(gw, &mockEmitter{}, DefaultConfig())

	_, err := engine.NewRevision(context.Background(), "acme", state.ID, testActor())
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDocumentSuperseded, appErr.Code)
	assert.Nil(t, gw.inserted, "no partial writes")
}

func TestEngineNewRevision_SupersedeRace(t *testing.T) {
	// Two callers pass the superseded check; the second loses the
	// conditional update and gets a state mismatch.
	state := draftState()
	state.Status = StatusApproved
	gw := &mockGateway{state: state, supersedeSet: true, supersedeAffected: 0}
	engine := newTestEngine(gw, &mockEmitter{}, DefaultConfig())

	_, err := engine.NewRevision(context.Background(), "acme", state.ID, testActor())
	require.Error(t, err)
	assert.True(t, apperror.IsStateMismatch(err))
}

func TestEngineNewRevision_RequiresApproved(t *testing.T) {
	for _, status := range []Status{StatusDraft, StatusSubmitted, StatusRejected, StatusObsolete} {
		state := draftState()
		state.Status = status
		gw := &mockGateway{state: state}
		engine := newTestEngine(gw, &mockEmitter{}, DefaultConfig())

		_, err := engine.NewRevision(context.Background(), "acme", state.ID, testActor())
		require.Error(t, err, status)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeDomainViolation, appErr.Code, status)
	}
}

func TestDocumentStateEffective(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)

	state := draftState()
	state.Status = StatusApproved
	state.ExpiresAt = &past
	assert.Equal(t, StatusExpired, state.Effective(now))

	state.ExpiresAt = nil
	assert.Equal(t, StatusApproved, state.Effective(now))
}
