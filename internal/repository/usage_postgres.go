package repository

import (
	"context"
	"fmt"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository is append-only: records are never updated or deleted.
type UsageRepository interface {
	Create(ctx context.Context, record entity.UsageRecord) error
}

var _ UsageRepository = &UsagePostgres{}

type UsagePostgres struct {
	db *pgxpool.Pool
}

func NewUsagePostgres(db *pgxpool.Pool) *UsagePostgres {
	return &UsagePostgres{db: db}
}

func (r *UsagePostgres) Create(ctx context.Context, record entity.UsageRecord) error {
	id, err := toPgUUID(record.ID)
	if err != nil {
		return fmt.Errorf("invalid usage record ID: %w", err)
	}

	metadata := record.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO usage_records (
			id, tenant_id, actor_id, call_type, model,
			input_tokens, output_tokens, total_tokens, cost, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id,
		pgtype.Text{String: record.TenantID.String(), Valid: record.TenantID != ""},
		record.ActorID,
		string(record.CallType),
		record.Model,
		record.InputTokens,
		record.OutputTokens,
		record.TotalTokens,
		record.Cost,
		metadata,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}

	return nil
}
