package search

import (
	"context"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
)

type Searcher interface {
	SearchSimilarChunks(ctx context.Context, tenant entity.TenantID, actor string, q entity.SearchQuery) ([]*entity.ScoredChunk, error)
}
