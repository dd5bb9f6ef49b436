package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"docuvault/internal/core/id"
	"docuvault/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used for a row.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditStore persists audit entries. It implements audit.Emitter and
// audit.Reader. Record runs on whatever querier the context carries, so a
// call inside a transaction shares that transaction's fate: if the entry
// cannot be written the surrounding mutation rolls back.
type AuditStore struct {
	txm               *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var (
	_ audit.Emitter = (*AuditStore)(nil)
	_ audit.Reader  = (*AuditStore)(nil)
)

// NewAuditStore creates an audit store. Metadata beyond the threshold is
// stored zstd-compressed.
func NewAuditStore(txm *TxManager) (*AuditStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditStore{
		txm:               txm,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// Record inserts one immutable audit row.
func (s *AuditStore) Record(ctx context.Context, entry audit.Entry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	var metadataCompressed []byte
	algo := CompressionNone
	if len(metadataJSON) > s.compressThreshold {
		metadataCompressed = s.encoder.EncodeAll(metadataJSON, nil)
		metadataJSON = nil
		algo = CompressionZstd
	}

	sql := `
		INSERT INTO audit_entries (
			id, tenant_id, actor_id, actor_email, action,
			entity_type, entity_id,
			metadata, metadata_compressed, compression_algo,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.txm.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.TenantID, entry.ActorID, entry.ActorEmail, entry.Action,
		entry.EntityType, entry.EntityID,
		metadataJSON, metadataCompressed, algo,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByEntity retrieves the trail for an entity, newest first.
func (s *AuditStore) ListByEntity(ctx context.Context, tenantID, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	sql := `
		SELECT id, tenant_id, actor_id, actor_email, action,
			   entity_type, entity_id,
			   metadata, metadata_compressed, compression_algo,
			   created_at
		FROM audit_entries
		WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at DESC
		LIMIT $4
	`

	rows, err := s.txm.GetQuerier(ctx).Query(ctx, sql, tenantID, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var metadataJSON, metadataCompressed []byte
		var algo CompressionAlgo

		err := rows.Scan(
			&e.ID, &e.TenantID, &e.ActorID, &e.ActorEmail, &e.Action,
			&e.EntityType, &e.EntityID,
			&metadataJSON, &metadataCompressed, &algo,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		if algo == CompressionZstd && len(metadataCompressed) > 0 {
			metadataJSON, err = s.decoder.DecodeAll(metadataCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress audit metadata: %w", err)
			}
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
