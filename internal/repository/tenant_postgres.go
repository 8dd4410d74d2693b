package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantRepository defines the interface for tenant configuration persistence
type TenantRepository interface {
	Get(ctx context.Context, id entity.TenantID) (*entity.Tenant, error)
	Upsert(ctx context.Context, tenant entity.Tenant) (*entity.Tenant, error)
}

var _ TenantRepository = &TenantPostgres{}

type TenantPostgres struct {
	db *pgxpool.Pool
}

func NewTenantPostgres(db *pgxpool.Pool) *TenantPostgres {
	return &TenantPostgres{db: db}
}

const tenantColumns = `id, name, embedding_model, llm_model, status, created_at`

func (r *TenantPostgres) Get(ctx context.Context, id entity.TenantID) (*entity.Tenant, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id.String())

	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}

	return tenant, nil
}

func (r *TenantPostgres) Upsert(ctx context.Context, tenant entity.Tenant) (*entity.Tenant, error) {
	if err := tenant.ID.Validate(); err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO tenants (id, name, embedding_model, llm_model, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			embedding_model = EXCLUDED.embedding_model,
			llm_model = EXCLUDED.llm_model,
			status = EXCLUDED.status
		RETURNING `+tenantColumns,
		tenant.ID.String(),
		tenant.Name,
		withDefault(tenant.EmbeddingModel, entity.DefaultEmbeddingModel),
		withDefault(tenant.LLMModel, entity.DefaultLLMModel),
		string(withDefaultStatus(tenant.Status)),
	)

	saved, err := scanTenant(row)
	if err != nil {
		return nil, fmt.Errorf("upsert tenant: %w", err)
	}

	return saved, nil
}

func withDefaultStatus(s entity.TenantStatus) entity.TenantStatus {
	if s == "" {
		return entity.TenantStatusActive
	}
	return s
}
