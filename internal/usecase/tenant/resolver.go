package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/repository"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const DefaultCacheTTL = 5 * time.Minute

// Resolver loads tenant configuration and keeps it in an in-process cache.
type Resolver struct {
	repo  repository.TenantRepository
	cache *cache.Cache
}

func NewResolver(repo repository.TenantRepository, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{
		repo:  repo,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Resolve returns the configuration of an active tenant. Unknown tenants give
// ErrTenantNotFound, inactive or suspended ones ErrTenantInactive.
func (r *Resolver) Resolve(ctx context.Context, id entity.TenantID) (*entity.Tenant, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var t entity.Tenant
	if cached, ok := r.cache.Get(id.String()); ok {
		t = cached.(entity.Tenant)
	} else {
		loaded, err := r.repo.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve tenant: %w", err)
		}
		t = *loaded
		r.cache.SetDefault(id.String(), t)
		ctxzap.Debug(ctx, "tenant config loaded", zap.String("tenant_id", id.String()))
	}

	if t.Status != entity.TenantStatusActive {
		return nil, fmt.Errorf("%w: status %s", entity.ErrTenantInactive, t.Status)
	}

	return &t, nil
}

// Invalidate drops the cached entry so the next Resolve reads the store.
func (r *Resolver) Invalidate(id entity.TenantID) {
	r.cache.Delete(id.String())
}
