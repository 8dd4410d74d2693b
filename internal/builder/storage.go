package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/facundoguellutn/stoodeochat/internal/config"
	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/repository"
	"github.com/facundoguellutn/stoodeochat/internal/repository/memory"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// storage groups the repositories of one storage driver.
type storage struct {
	tenants       repository.TenantRepository
	documents     repository.DocumentRepository
	chunks        repository.ChunkRepository
	conversations repository.ConversationRepository
	usage         repository.UsageRepository

	db *pgxpool.Pool // nil for the memory driver
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		return setupMemoryStorage(ctx, cfg.MemoryTenants, cfg.EmbeddingConnectorCfg.Dimensions, logger)
	case config.StorageDriverPostgres:
		db, err := setupDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return &storage{
			tenants:       repository.NewTenantPostgres(db),
			documents:     repository.NewDocumentPostgres(db),
			chunks:        repository.NewChunkPostgres(db),
			conversations: repository.NewConversationPostgres(db),
			usage:         repository.NewUsagePostgres(db),
			db:            db,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func setupMemoryStorage(ctx context.Context, seeds []string, dimensions int, logger *zap.Logger) (*storage, error) {
	tenants, err := parseTenantSeeds(seeds)
	if err != nil {
		return nil, err
	}

	store := memory.NewStore(memory.WithDimensions(dimensions))
	for _, t := range tenants {
		if _, err := store.Tenants().Upsert(ctx, t); err != nil {
			return nil, fmt.Errorf("seed tenant %s: %w", t.ID, err)
		}
	}

	logger.Warn("Using in-memory storage; data is lost on restart", zap.Int("tenants", len(tenants)))

	return &storage{
		tenants:       store.Tenants(),
		documents:     store.Documents(),
		chunks:        store.Chunks(),
		conversations: store.Conversations(),
		usage:         store.Usage(),
	}, nil
}

// parseTenantSeeds reads "id" or "id:name" entries.
func parseTenantSeeds(seeds []string) ([]entity.Tenant, error) {
	tenants := make([]entity.Tenant, 0, len(seeds))
	seen := make(map[entity.TenantID]bool, len(seeds))

	for _, seed := range seeds {
		seed = strings.TrimSpace(seed)
		if seed == "" {
			continue
		}

		id, name, _ := strings.Cut(seed, ":")
		id = strings.TrimSpace(id)
		name = strings.TrimSpace(name)
		if id == "" {
			return nil, fmt.Errorf("%w: tenant seed %q has no id", entity.ErrInvalidParameter, seed)
		}
		if name == "" {
			name = id
		}

		tenantID := entity.TenantID(id)
		if seen[tenantID] {
			return nil, fmt.Errorf("%w: duplicate tenant seed %q", entity.ErrInvalidParameter, id)
		}
		seen[tenantID] = true

		tenants = append(tenants, entity.Tenant{ID: tenantID, Name: name})
	}

	return tenants, nil
}

func (s *storage) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
