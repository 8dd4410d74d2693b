package retrieval

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/metering"
	"github.com/facundoguellutn/stoodeochat/internal/repository/memory"
	"github.com/facundoguellutn/stoodeochat/internal/usecase/embedding"
	"github.com/facundoguellutn/stoodeochat/internal/usecase/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tenantA entity.TenantID = "tenant-a"
	tenantB entity.TenantID = "tenant-b"
)

// fixedConnector embeds every text as the same unit vector.
type fixedConnector struct {
	vector []float32
	models []string
}

func (c *fixedConnector) Embed(_ context.Context, model string, texts []string) (*entity.EmbeddingBatch, error) {
	c.models = append(c.models, model)
	batch := &entity.EmbeddingBatch{InputTokens: 3 * len(texts)}
	for range texts {
		batch.Vectors = append(batch.Vectors, c.vector)
	}
	return batch, nil
}

// withScore returns a 2-d unit vector whose cosine with (1, 0) is score.
func withScore(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score))}
}

type fixture struct {
	store    *memory.Store
	conn     *fixedConnector
	searcher *Searcher
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	for _, id := range []entity.TenantID{tenantA, tenantB} {
		_, err := store.Tenants().Upsert(ctx, entity.Tenant{ID: id, EmbeddingModel: "text-embedding-3-small"})
		require.NoError(t, err)
	}

	conn := &fixedConnector{vector: []float32{1, 0}}
	meter := metering.NewMeter(store.Usage(), metering.DefaultPriceTable(), metering.DefaultChannelPricing())
	embedder := embedding.NewService(conn, meter, 0, "", 2)
	resolver := tenant.NewResolver(store.Tenants(), time.Minute)

	return &fixture{
		store:    store,
		conn:     conn,
		searcher: NewSearcher(embedder, resolver, store.Chunks(), opts),
	}
}

// index stores an active document whose chunks score the given values.
func (f *fixture) index(t *testing.T, tenant entity.TenantID, docID, name string, scores ...float64) {
	t.Helper()
	ctx := context.Background()
	versionID := docID + "-v1"

	require.NoError(t, f.store.Documents().CreateWithVersion(ctx,
		entity.Document{ID: docID, TenantID: tenant, Name: name},
		entity.DocumentVersion{ID: versionID, Number: 1},
	))

	chunks := make([]*entity.Chunk, 0, len(scores))
	for i, s := range scores {
		chunks = append(chunks, &entity.Chunk{
			ID:         fmt.Sprintf("%s-c%d", docID, i),
			VersionID:  versionID,
			DocumentID: docID,
			TenantID:   tenant,
			Position:   i,
			Text:       fmt.Sprintf("%s chunk %d", name, i),
			Embedding:  withScore(s),
		})
	}
	require.NoError(t, f.store.Chunks().InsertBatch(ctx, chunks))
	require.NoError(t, f.store.Documents().ActivateVersion(ctx, tenant, docID, versionID))
}

func TestSearcher_ReturnsOnlyQualifyingChunksSorted(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.index(t, tenantA, "doc-1", "faq.md", 0.6, 0.95, 0.1, 0.2, 0.3, 0.4, 0.45)
	f.index(t, tenantA, "doc-2", "manual.pdf", 0.8, 0.05, 0.15, 0.25, 0.35, 0.49)

	results, err := f.searcher.SearchSimilarChunks(context.Background(), tenantA, "user-1", entity.SearchQuery{Query: "horarios", Limit: 5})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.InDelta(t, 0.95, results[0].Score, 1e-6)
	assert.InDelta(t, 0.8, results[1].Score, 1e-6)
	assert.InDelta(t, 0.6, results[2].Score, 1e-6)
	assert.Equal(t, "faq.md", results[0].DocumentName)
	assert.Equal(t, "manual.pdf", results[1].DocumentName)
}

func TestSearcher_TenantIsolation(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.index(t, tenantA, "doc-a", "a.txt", 0.55)
	f.index(t, tenantB, "doc-b", "b.txt", 0.99, 0.98, 0.97)

	results, err := f.searcher.SearchSimilarChunks(context.Background(), tenantA, "user-1", entity.SearchQuery{Query: "q"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	for _, r := range results {
		assert.Equal(t, tenantA, r.TenantID)
	}
}

func TestSearcher_CustomMinScoreAndLimit(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.index(t, tenantA, "doc-1", "faq.md", 0.9, 0.7, 0.3, 0.2)

	floor := 0.25
	results, err := f.searcher.SearchSimilarChunks(context.Background(), tenantA, "user-1",
		entity.SearchQuery{Query: "q", Limit: 2, MinScore: &floor})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	results, err = f.searcher.SearchSimilarChunks(context.Background(), tenantA, "user-1",
		entity.SearchQuery{Query: "q", Limit: 10, MinScore: &floor})
	require.NoError(t, err)
	assert.Len(t, results, 3)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, floor)
	}
}

func TestSearcher_EmptyResultIsValid(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	results, err := f.searcher.SearchSimilarChunks(context.Background(), tenantA, "user-1", entity.SearchQuery{Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearcher_RecordsQueryUsage(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	_, err := f.searcher.SearchSimilarChunks(context.Background(), tenantA, "user-1", entity.SearchQuery{Query: "  refund policy "})
	require.NoError(t, err)

	records := f.store.Usage().Records(tenantA)
	require.Len(t, records, 1)
	assert.Equal(t, entity.CallTypeEmbedding, records[0].CallType)
	assert.Equal(t, "user-1", records[0].ActorID)
	assert.Equal(t, "vector_search", records[0].Metadata["action"])
	assert.Equal(t, "refund policy", records[0].Metadata["query"])
	assert.Equal(t, []string{"text-embedding-3-small"}, f.conn.models)
}

func TestSearcher_ValidationBeforeIO(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	_, err := f.searcher.SearchSimilarChunks(ctx, "", "user-1", entity.SearchQuery{Query: "q"})
	assert.ErrorIs(t, err, entity.ErrMissingTenant)

	_, err = f.searcher.SearchSimilarChunks(ctx, tenantA, "", entity.SearchQuery{Query: "q"})
	assert.ErrorIs(t, err, entity.ErrMissingActor)

	_, err = f.searcher.SearchSimilarChunks(ctx, tenantA, "user-1", entity.SearchQuery{Query: "   "})
	assert.ErrorIs(t, err, entity.ErrMissingField)

	_, err = f.searcher.SearchSimilarChunks(ctx, "ghost", "user-1", entity.SearchQuery{Query: "q"})
	assert.ErrorIs(t, err, entity.ErrTenantNotFound)

	assert.Empty(t, f.conn.models)
	assert.Empty(t, f.store.Usage().Records(""))
}

func TestSearcher_VectorQuery(t *testing.T) {
	s := NewSearcher(nil, nil, nil, Options{MaxLimit: 100, MinScore: 0.5})

	tests := []struct {
		name   string
		q      entity.SearchQuery
		expect entity.VectorQuery
	}{
		{"defaults", entity.SearchQuery{}, entity.VectorQuery{Limit: 5, Candidates: 100, MinScore: 0.5}},
		{"custom limit", entity.SearchQuery{Limit: 10}, entity.VectorQuery{Limit: 10, Candidates: 200, MinScore: 0.5}},
		{"candidates capped", entity.SearchQuery{Limit: 60}, entity.VectorQuery{Limit: 60, Candidates: 1000, MinScore: 0.5}},
		{"limit capped", entity.SearchQuery{Limit: 500}, entity.VectorQuery{Limit: 100, Candidates: 1000, MinScore: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, s.vectorQuery(tt.q))
		})
	}

	zero := 0.0
	assert.Equal(t, 0.0, s.vectorQuery(entity.SearchQuery{MinScore: &zero}).MinScore)
}

func TestSearcher_CandidatePoolNeverExceedsIndexLimit(t *testing.T) {
	s := NewSearcher(nil, nil, nil, Options{MaxLimit: 50, CandidateMultiplier: 40, MaxCandidates: 5000})

	q := s.vectorQuery(entity.SearchQuery{Limit: 50})

	assert.Equal(t, 50, q.Limit)
	assert.Equal(t, entity.MaxVectorCandidates, q.Candidates)
}
