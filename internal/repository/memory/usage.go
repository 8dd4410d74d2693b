package memory

import (
	"context"
	"fmt"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/repository"
)

var _ repository.UsageRepository = &UsageMemory{}

type UsageMemory struct {
	store *Store
}

func (r *UsageMemory) Create(_ context.Context, record entity.UsageRecord) error {
	if record.ID == "" {
		return fmt.Errorf("%w: usage record id", entity.ErrMissingField)
	}

	record.Metadata = cloneMetadata(record.Metadata)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.usage = append(r.store.usage, record)
	return nil
}

// Records returns a copy of every stored record in insertion order. An empty
// tenant returns all of them.
func (r *UsageMemory) Records(tenant entity.TenantID) []entity.UsageRecord {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]entity.UsageRecord, 0, len(r.store.usage))
	for _, rec := range r.store.usage {
		if tenant != "" && rec.TenantID != tenant {
			continue
		}
		rec.Metadata = cloneMetadata(rec.Metadata)
		out = append(out, rec)
	}
	return out
}
