package chat

import (
	"context"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
)

type Searcher interface {
	SearchSimilarChunks(ctx context.Context, tenant entity.TenantID, actor string, q entity.SearchQuery) ([]*entity.ScoredChunk, error)
}

type TenantResolver interface {
	Resolve(ctx context.Context, id entity.TenantID) (*entity.Tenant, error)
}

type LLMConnector interface {
	Stream(ctx context.Context, req entity.GenerationRequest, onDelta func(delta string) error) (*entity.Completion, error)
}

type UsageRecorder interface {
	RecordUsage(ctx context.Context, params entity.UsageParams) (*entity.UsageRecord, error)
	RecordChannelMessage(ctx context.Context, params entity.ChannelMessageParams) (*entity.UsageRecord, error)
}
