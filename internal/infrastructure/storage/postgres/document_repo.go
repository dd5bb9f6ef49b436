package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"docuvault/internal/core/apperror"
	"docuvault/internal/core/id"
	"docuvault/internal/domain/document"
	"docuvault/internal/domain/workflow"
)

const (
	documentTable        = "documents"
	documentVersionTable = "document_versions"
)

// DocumentRepo implements document.Repository and workflow.Gateway over the
// same table. The status machine and CRUD share one optimistic locking
// marker, so a CRUD update invalidates a concurrent transition and vice
// versa.
type DocumentRepo struct {
	txm        *TxManager
	selectCols []string
}

var (
	_ document.Repository = (*DocumentRepo)(nil)
	_ workflow.Gateway    = (*DocumentRepo)(nil)
)

// NewDocumentRepo creates a document repository.
func NewDocumentRepo(txm *TxManager) *DocumentRepo {
	return &DocumentRepo{
		txm:        txm,
		selectCols: ExtractDBColumns[document.Document](),
	}
}

func (r *DocumentRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *DocumentRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().
		Select(r.selectCols...).
		From(documentTable)
}

// Create inserts a new document.
func (r *DocumentRepo) Create(ctx context.Context, doc *document.Document) error {
	data := StructToMap(doc)

	q := r.builder().
		Insert(documentTable).
		SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("document", "id", doc.ID.String())
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByID retrieves a document within the tenant. Documents outside the
// tenant are indistinguishable from absent ones.
func (r *DocumentRepo) GetByID(ctx context.Context, tenantID string, docID id.ID) (*document.Document, error) {
	doc := &document.Document{}

	q := r.baseSelect().
		Where(squirrel.Eq{"id": docID, "tenant_id": tenantID, "deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", docID.String())
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// List retrieves documents with filtering and total count.
func (r *DocumentRepo) List(ctx context.Context, tenantID string, filter document.Filter) ([]document.Document, int, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"tenant_id": tenantID, "deletion_mark": false})

	countQ := r.builder().
		Select("COUNT(*)").
		From(documentTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "deletion_mark": false})

	if filter.FolderID != nil {
		q = q.Where(squirrel.Eq{"folder_id": *filter.FolderID})
		countQ = countQ.Where(squirrel.Eq{"folder_id": *filter.FolderID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
		countQ = countQ.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		cond := squirrel.Or{
			squirrel.ILike{"title": pattern},
			squirrel.ILike{"description": pattern},
		}
		q = q.Where(cond)
		countQ = countQ.Where(cond)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q = q.OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(max(filter.Offset, 0)))

	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := pgxscan.Get(ctx, querier, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	var docs []document.Document
	if err := pgxscan.Select(ctx, querier, &docs, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	return docs, total, nil
}

// Update writes mutable fields under optimistic locking. Status is excluded:
// only the workflow engine moves it, through UpdateStatus.
func (r *DocumentRepo) Update(ctx context.Context, doc *document.Document) error {
	q := r.builder().
		Update(documentTable).
		Set("title", doc.Title).
		Set("description", doc.Description).
		Set("expires_at", doc.ExpiresAt).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{
			"id":        doc.ID,
			"tenant_id": doc.TenantID,
			"version":   doc.Version,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewStateMismatch("document", doc.ID.String())
	}
	doc.Version++
	return nil
}

// SoftDelete marks a document deleted.
func (r *DocumentRepo) SoftDelete(ctx context.Context, tenantID string, docID id.ID) error {
	q := r.builder().
		Update(documentTable).
		Set("deletion_mark", true).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": docID, "tenant_id": tenantID, "deletion_mark": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("soft delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("document", docID.String())
	}
	return nil
}

// --- payload versions ---

// InsertVersion stores a new payload version.
func (r *DocumentRepo) InsertVersion(ctx context.Context, v *document.Version) error {
	q := r.builder().
		Insert(documentVersionTable).
		SetMap(StructToMap(v))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("document version", "version_no", fmt.Sprint(v.VersionNo))
		}
		return fmt.Errorf("insert document version: %w", err)
	}
	return nil
}

// SetCurrentVersion points the document at a version, conditional on the
// optimistic locking marker.
func (r *DocumentRepo) SetCurrentVersion(ctx context.Context, tenantID string, docID id.ID, expectedVersion int, versionID id.ID) (int64, error) {
	q := r.builder().
		Update(documentTable).
		Set("current_version_id", versionID).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{
			"id":        docID,
			"tenant_id": tenantID,
			"version":   expectedVersion,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("set current version: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListVersions returns all payload versions, newest first.
func (r *DocumentRepo) ListVersions(ctx context.Context, tenantID string, docID id.ID) ([]document.Version, error) {
	q := r.builder().
		Select(ExtractDBColumns[document.Version]()...).
		From(documentVersionTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "document_id": docID}).
		OrderBy("version_no DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var versions []document.Version
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &versions, sql, args...); err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	return versions, nil
}

// NextVersionNo returns the next payload version number for a document.
func (r *DocumentRepo) NextVersionNo(ctx context.Context, tenantID string, docID id.ID) (int, error) {
	q := r.builder().
		Select("COALESCE(MAX(version_no), 0) + 1").
		From(documentVersionTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "document_id": docID})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var next int
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &next, sql, args...); err != nil {
		return 0, fmt.Errorf("next version no: %w", err)
	}
	return next, nil
}

// --- workflow.Gateway ---

// FindState loads the state machine's slice of a document.
func (r *DocumentRepo) FindState(ctx context.Context, tenantID string, docID id.ID) (*workflow.DocumentState, error) {
	doc, err := r.GetByID(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	return doc.State(), nil
}

// UpdateStatus performs the conditional status write. The WHERE clause pins
// both the version marker and the expected current status; zero affected
// rows means a concurrent writer got there first.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, tenantID string, docID id.ID, expectedVersion int, expectedStatus, newStatus workflow.Status) (int64, error) {
	q := r.builder().
		Update(documentTable).
		Set("status", newStatus).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{
			"id":        docID,
			"tenant_id": tenantID,
			"version":   expectedVersion,
			"status":    expectedStatus,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("update status: %w", err)
	}
	return result.RowsAffected(), nil
}

// MarkSuperseded links an approved document to its successor revision,
// conditional on the version marker and on no successor existing yet.
func (r *DocumentRepo) MarkSuperseded(ctx context.Context, tenantID string, docID id.ID, expectedVersion int, successorID id.ID) (int64, error) {
	q := r.builder().
		Update(documentTable).
		Set("superseded_by_id", successorID).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{
			"id":        docID,
			"tenant_id": tenantID,
			"version":   expectedVersion,
		}).
		Where("superseded_by_id IS NULL")

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("mark superseded: %w", err)
	}
	return result.RowsAffected(), nil
}

// InsertRevision stores the successor document created by a revision.
func (r *DocumentRepo) InsertRevision(ctx context.Context, state *workflow.DocumentState) error {
	doc := &document.Document{
		ID:           state.ID,
		TenantID:     state.TenantID,
		FolderID:     state.FolderID,
		Title:        state.Title,
		Status:       state.Status,
		ExpiresAt:    state.ExpiresAt,
		CreatedBy:    state.CreatedBy,
		RevisionOfID: state.RevisionOfID,
		RevisionNo:   state.RevisionNo,
		Version:      state.Version,
	}
	now := nowUTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return r.Create(ctx, doc)
}
