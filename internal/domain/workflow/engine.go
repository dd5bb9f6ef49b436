package workflow

import (
	"context"
	"fmt"
	"time"

	"docuvault/internal/core/apperror"
	appctx "docuvault/internal/core/context"
	"docuvault/internal/core/id"
	"docuvault/internal/core/security"
	"docuvault/internal/core/tx"
	"docuvault/internal/domain/audit"
	"docuvault/internal/obs"
	"docuvault/pkg/logger"
)

// DocumentState is the slice of a document the state machine operates on.
type DocumentState struct {
	ID             id.ID
	TenantID       string
	FolderID       id.ID
	Title          string
	Status         Status
	ExpiresAt      *time.Time
	CreatedBy      string
	SupersededByID *id.ID
	RevisionOfID   *id.ID
	RevisionNo     int
	Version        int
}

// Effective returns the derived status at now.
func (d *DocumentState) Effective(now time.Time) Status {
	return EffectiveStatus(d.Status, d.ExpiresAt, now)
}

// Gateway is the persistence surface the engine needs. Reads are tenant
// scoped: a document in another tenant is reported as not found. The status
// update is conditional on both the version marker and the expected current
// status; zero affected rows means a concurrent writer won the race.
type Gateway interface {
	FindState(ctx context.Context, tenantID string, docID id.ID) (*DocumentState, error)
	UpdateStatus(ctx context.Context, tenantID string, docID id.ID, expectedVersion int, expectedStatus, newStatus Status) (int64, error)
	MarkSuperseded(ctx context.Context, tenantID string, docID id.ID, expectedVersion int, successorID id.ID) (int64, error)
	InsertRevision(ctx context.Context, state *DocumentState) error
}

// Summary is the caller-visible result of a successful transition.
type Summary struct {
	DocumentID id.ID  `json:"documentId"`
	FromStatus Status `json:"fromStatus"`
	ToStatus   Status `json:"toStatus"`
	Version    int    `json:"version"`
}

// Config tunes the engine.
type Config struct {
	// MaxRetries bounds automatic retries on a concurrent state mismatch.
	MaxRetries int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 3}
}

// Engine executes document status transitions under optimistic concurrency.
// It assumes the caller already passed authorization, but it independently
// re-validates the transition table on every call.
type Engine struct {
	gateway Gateway
	audit   audit.Emitter
	txm     tx.Manager
	policy  security.TransitionPolicy
	cfg     Config
	now     func() time.Time
}

// NewEngine creates a workflow engine. policy may be nil (no extra gating).
func NewEngine(gateway Gateway, emitter audit.Emitter, txm tx.Manager, policy security.TransitionPolicy, cfg Config) *Engine {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if policy == nil {
		policy = security.OpenTransitionPolicy{}
	}
	return &Engine{
		gateway: gateway,
		audit:   emitter,
		txm:     txm,
		policy:  policy,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the engine clock (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Transition applies action to the document, retrying a bounded number of
// times when a concurrent writer invalidates the read. The last state
// mismatch is surfaced to the caller, who should re-read and decide.
func (e *Engine) Transition(ctx context.Context, tenantID string, docID id.ID, action Action, actor *appctx.UserContext) (*Summary, error) {
	if actor == nil || actor.UserID == "" {
		return nil, apperror.NewInvalidIdentity("actor is required")
	}
	if err := e.policy.CanApply(ctx, string(action), actor); err != nil {
		return nil, err
	}

	var summary *Summary
	var err error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		summary, err = e.transitionOnce(ctx, tenantID, docID, action, actor)
		if err == nil {
			obs.TransitionApplied(string(action), "ok")
			return summary, nil
		}
		if !apperror.IsStateMismatch(err) {
			break
		}
		logger.Debug(ctx, "transition lost race, retrying",
			"document_id", docID,
			"action", action,
			"attempt", attempt+1,
		)
	}
	obs.TransitionApplied(string(action), failureLabel(err))
	return nil, err
}

// transitionOnce runs one read-check-write attempt inside a transaction.
// The audit record is written in the same transaction as the status change:
// a failure to audit aborts the transition.
func (e *Engine) transitionOnce(ctx context.Context, tenantID string, docID id.ID, action Action, actor *appctx.UserContext) (*Summary, error) {
	var summary *Summary
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := e.gateway.FindState(ctx, tenantID, docID)
		if err != nil {
			return err
		}

		to, err := ValidateTransition(action, doc.Status)
		if err != nil {
			return err
		}

		affected, err := e.gateway.UpdateStatus(ctx, tenantID, docID, doc.Version, doc.Status, to)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("conditional status update: %w", err))
		}
		if affected == 0 {
			return apperror.NewStateMismatch("document", docID)
		}

		entry := audit.Entry{
			TenantID:   tenantID,
			ActorID:    actor.UserID,
			ActorEmail: actor.Email,
			Action:     "document." + string(action),
			EntityType: audit.EntityDocument,
			EntityID:   docID,
			Metadata: audit.Metadata{
				SchemaVersion: audit.MetadataSchemaVersion,
				FromStatus:    string(doc.Status),
				ToStatus:      string(to),
				FolderID:      doc.FolderID.String(),
			},
			CreatedAt: e.now(),
		}
		if err := e.audit.Record(ctx, entry); err != nil {
			return apperror.NewInternal(fmt.Errorf("audit transition: %w", err))
		}

		summary = &Summary{
			DocumentID: docID,
			FromStatus: doc.Status,
			ToStatus:   to,
			Version:    doc.Version + 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// NewRevision creates a DRAFT successor of an APPROVED document. Permitted
// exactly once per approved document: a second attempt fails with a
// superseded conflict and leaves no partial writes behind.
func (e *Engine) NewRevision(ctx context.Context, tenantID string, docID id.ID, actor *appctx.UserContext) (*DocumentState, error) {
	if actor == nil || actor.UserID == "" {
		return nil, apperror.NewInvalidIdentity("actor is required")
	}

	var successor *DocumentState
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := e.gateway.FindState(ctx, tenantID, docID)
		if err != nil {
			return err
		}
		if doc.Status != StatusApproved {
			return apperror.NewDomainViolation(
				apperror.CodeDomainViolation,
				"only an approved document can be revised",
			).WithDetail("current_status", string(doc.Status))
		}
		if doc.SupersededByID != nil {
			return apperror.NewDocumentSuperseded(docID)
		}

		revisionOf := doc.ID
		successor = &DocumentState{
			ID:           id.New(),
			TenantID:     doc.TenantID,
			FolderID:     doc.FolderID,
			Title:        doc.Title,
			Status:       StatusDraft,
			CreatedBy:    actor.UserID,
			RevisionOfID: &revisionOf,
			RevisionNo:   doc.RevisionNo + 1,
			Version:      1,
		}
		if err := e.gateway.InsertRevision(ctx, successor); err != nil {
			return apperror.NewInternal(fmt.Errorf("insert revision: %w", err))
		}

		affected, err := e.gateway.MarkSuperseded(ctx, tenantID, docID, doc.Version, successor.ID)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("mark superseded: %w", err))
		}
		if affected == 0 {
			return apperror.NewStateMismatch("document", docID)
		}

		entry := audit.Entry{
			TenantID:   tenantID,
			ActorID:    actor.UserID,
			ActorEmail: actor.Email,
			Action:     "document.revise",
			EntityType: audit.EntityDocument,
			EntityID:   docID,
			Metadata: audit.Metadata{
				SchemaVersion: audit.MetadataSchemaVersion,
				FromStatus:    string(StatusApproved),
				FolderID:      doc.FolderID.String(),
				SuccessorID:   successor.ID.String(),
			},
			CreatedAt: e.now(),
		}
		if err := e.audit.Record(ctx, entry); err != nil {
			return apperror.NewInternal(fmt.Errorf("audit revision: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "revision created",
		"document_id", docID,
		"successor_id", successor.ID,
		"revision_no", successor.RevisionNo,
	)
	return successor, nil
}

func failureLabel(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Code
	}
	return apperror.CodeInternal
}
