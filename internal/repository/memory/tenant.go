package memory

import (
	"context"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/repository"
)

var _ repository.TenantRepository = &TenantMemory{}

type TenantMemory struct {
	store *Store
}

func (r *TenantMemory) Get(_ context.Context, id entity.TenantID) (*entity.Tenant, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tenant, ok := r.store.tenants[id]
	if !ok {
		return nil, entity.ErrTenantNotFound
	}
	return &tenant, nil
}

func (r *TenantMemory) Upsert(_ context.Context, tenant entity.Tenant) (*entity.Tenant, error) {
	if err := tenant.ID.Validate(); err != nil {
		return nil, err
	}

	if tenant.EmbeddingModel == "" {
		tenant.EmbeddingModel = entity.DefaultEmbeddingModel
	}
	if tenant.LLMModel == "" {
		tenant.LLMModel = entity.DefaultLLMModel
	}
	if tenant.Status == "" {
		tenant.Status = entity.TenantStatusActive
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing, ok := r.store.tenants[tenant.ID]; ok {
		tenant.CreatedAt = existing.CreatedAt
	} else {
		tenant.CreatedAt = r.store.now()
	}
	r.store.tenants[tenant.ID] = tenant

	return &tenant, nil
}
