package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/repository"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	DefaultLimit               = 5
	DefaultMaxLimit            = 50
	DefaultMinScore            = 0.5
	DefaultCandidateMultiplier = 20
	DefaultMaxCandidates       = entity.MaxVectorCandidates
)

// Options tune similarity search. The score floor and the over-fetch
// multiplier are empirical defaults.
type Options struct {
	Limit               int
	MaxLimit            int
	MinScore            float64
	CandidateMultiplier int
	MaxCandidates       int
}

func DefaultOptions() Options {
	return Options{
		Limit:               DefaultLimit,
		MaxLimit:            DefaultMaxLimit,
		MinScore:            DefaultMinScore,
		CandidateMultiplier: DefaultCandidateMultiplier,
		MaxCandidates:       DefaultMaxCandidates,
	}
}

func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.MaxLimit <= 0 {
		o.MaxLimit = d.MaxLimit
	}
	if o.Limit <= 0 {
		o.Limit = d.Limit
	}
	o.Limit = min(o.Limit, o.MaxLimit)
	if o.CandidateMultiplier <= 0 {
		o.CandidateMultiplier = d.CandidateMultiplier
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = d.MaxCandidates
	}
	o.MaxCandidates = min(o.MaxCandidates, entity.MaxVectorCandidates)
	o.MaxLimit = min(o.MaxLimit, o.MaxCandidates)
	o.Limit = min(o.Limit, o.MaxLimit)
	return o
}

// Searcher runs tenant-scoped similarity search over indexed chunks.
type Searcher struct {
	embedder Embedder
	tenants  TenantResolver
	chunks   repository.ChunkRepository
	opts     Options
}

func NewSearcher(
	embedder Embedder,
	tenants TenantResolver,
	chunks repository.ChunkRepository,
	opts Options,
) *Searcher {
	return &Searcher{
		embedder: embedder,
		tenants:  tenants,
		chunks:   chunks,
		opts:     opts.normalize(),
	}
}

// vectorQuery resolves the caller's limit and score floor against the
// configured defaults.
func (s *Searcher) vectorQuery(q entity.SearchQuery) entity.VectorQuery {
	limit := q.Limit
	if limit <= 0 {
		limit = s.opts.Limit
	}
	limit = min(limit, s.opts.MaxLimit)

	minScore := s.opts.MinScore
	if q.MinScore != nil {
		minScore = *q.MinScore
	}

	candidates := min(limit*s.opts.CandidateMultiplier, s.opts.MaxCandidates)

	return entity.VectorQuery{
		Limit:      limit,
		Candidates: max(candidates, limit),
		MinScore:   minScore,
	}
}

// SearchSimilarChunks embeds the query with the tenant's embedding model and
// returns the tenant's best matching chunks, highest score first. An empty
// result is not an error.
func (s *Searcher) SearchSimilarChunks(
	ctx context.Context,
	tenant entity.TenantID,
	actor string,
	q entity.SearchQuery,
) ([]*entity.ScoredChunk, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	if actor == "" {
		return nil, entity.ErrMissingActor
	}

	query := strings.TrimSpace(q.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query", entity.ErrMissingField)
	}

	cfg, err := s.tenants.Resolve(ctx, tenant)
	if err != nil {
		return nil, err
	}

	vectors, err := s.embedder.Embed(ctx, entity.EmbedRequest{
		Texts:    []string{query},
		Model:    cfg.EmbeddingModel,
		ActorID:  actor,
		TenantID: tenant,
		Metadata: map[string]any{
			"action": "vector_search",
			"query":  query,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vq := s.vectorQuery(q)

	results, err := s.chunks.SearchByVector(ctx, tenant, vectors[0], vq)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	ctxzap.Info(ctx, "similarity search done",
		zap.Int("limit", vq.Limit),
		zap.Int("candidates", vq.Candidates),
		zap.Float64("min_score", vq.MinScore),
		zap.Int("results", len(results)),
	)

	return results, nil
}
