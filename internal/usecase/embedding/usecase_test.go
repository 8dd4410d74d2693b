package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/metering"
	"github.com/facundoguellutn/stoodeochat/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConnector encodes each text's position so ordering can be checked.
type scriptedConnector struct {
	calls   [][]string
	failOn  int // 1-based call number that fails, 0 never
	shorten bool
}

func (c *scriptedConnector) Embed(_ context.Context, _ string, texts []string) (*entity.EmbeddingBatch, error) {
	c.calls = append(c.calls, texts)
	if c.failOn == len(c.calls) {
		return nil, fmt.Errorf("%w: boom", entity.ErrProvider)
	}

	batch := &entity.EmbeddingBatch{InputTokens: len(texts) * 10}
	for _, text := range texts {
		var n float32
		_, _ = fmt.Sscanf(text, "t%f", &n)
		batch.Vectors = append(batch.Vectors, []float32{n})
	}
	if c.shorten {
		batch.Vectors = batch.Vectors[1:]
	}
	return batch, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%d", i)
	}
	return out
}

func newService(t *testing.T, conn EmbeddingConnector, batchSize int) (*Service, *memory.UsageMemory) {
	t.Helper()
	store := memory.NewStore()
	meter := metering.NewMeter(store.Usage(), metering.DefaultPriceTable(), metering.DefaultChannelPricing())
	return NewService(conn, meter, batchSize, "", 1), store.Usage()
}

func TestService_EmbedPreservesOrderAcrossBatches(t *testing.T) {
	conn := &scriptedConnector{}
	svc, usage := newService(t, conn, 4)

	vectors, err := svc.Embed(context.Background(), entity.EmbedRequest{
		Texts:    texts(10),
		ActorID:  "user-1",
		TenantID: "tenant-a",
		Metadata: map[string]any{"document_id": "doc-1"},
	})
	require.NoError(t, err)

	require.Len(t, vectors, 10)
	for i, v := range vectors {
		assert.Equal(t, []float32{float32(i)}, v)
	}

	require.Len(t, conn.calls, 3)
	assert.Len(t, conn.calls[0], 4)
	assert.Len(t, conn.calls[2], 2)

	records := usage.Records("tenant-a")
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, entity.CallTypeEmbedding, rec.CallType)
		assert.Equal(t, entity.DefaultEmbeddingModel, rec.Model)
		assert.Equal(t, 0, rec.OutputTokens)
		assert.Equal(t, i, rec.Metadata["batch_index"])
		assert.Equal(t, "doc-1", rec.Metadata["document_id"])
	}
	assert.Equal(t, 4, records[0].Metadata["batch_size"])
	assert.Equal(t, 2, records[2].Metadata["batch_size"])
	assert.Equal(t, 20, records[2].InputTokens)
}

func TestService_EmbedFailingBatchFailsWholeCall(t *testing.T) {
	conn := &scriptedConnector{failOn: 2}
	svc, usage := newService(t, conn, 3)

	vectors, err := svc.Embed(context.Background(), entity.EmbedRequest{Texts: texts(7), ActorID: "user-1"})

	assert.ErrorIs(t, err, entity.ErrProvider)
	assert.Nil(t, vectors)
	assert.Len(t, conn.calls, 2)
	assert.Len(t, usage.Records(""), 1)
}

func TestService_EmbedCountMismatch(t *testing.T) {
	svc, _ := newService(t, &scriptedConnector{shorten: true}, 10)

	_, err := svc.Embed(context.Background(), entity.EmbedRequest{Texts: texts(3), ActorID: "user-1"})
	assert.ErrorIs(t, err, entity.ErrEmbeddingMismatch)
}

func TestService_EmbedDimensionMismatch(t *testing.T) {
	store := memory.NewStore()
	meter := metering.NewMeter(store.Usage(), metering.DefaultPriceTable(), metering.DefaultChannelPricing())
	svc := NewService(&scriptedConnector{}, meter, 10, "", 4)

	vectors, err := svc.Embed(context.Background(), entity.EmbedRequest{Texts: texts(2), ActorID: "user-1"})

	assert.ErrorIs(t, err, entity.ErrEmbeddingMismatch)
	assert.Nil(t, vectors)
	assert.Empty(t, store.Usage().Records(""))
}

func TestService_EmbedValidation(t *testing.T) {
	conn := &scriptedConnector{}
	svc, _ := newService(t, conn, 10)

	_, err := svc.Embed(context.Background(), entity.EmbedRequest{Texts: texts(1)})
	assert.ErrorIs(t, err, entity.ErrMissingActor)

	vectors, err := svc.Embed(context.Background(), entity.EmbedRequest{ActorID: "user-1"})
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, conn.calls)
}

func TestNewService_BatchSizeCapped(t *testing.T) {
	svc := NewService(&scriptedConnector{}, nil, 10_000, "custom-model", 0)
	assert.Equal(t, MaxBatchSize, svc.batchSize)
	assert.Equal(t, "custom-model", svc.defaultModel)

	svc = NewService(&scriptedConnector{}, nil, 0, "", 0)
	assert.Equal(t, MaxBatchSize, svc.batchSize)
}

type failingUsage struct{}

func (failingUsage) RecordUsage(context.Context, entity.UsageParams) (*entity.UsageRecord, error) {
	return nil, errors.New("db down")
}

func TestService_EmbedUsageFailure(t *testing.T) {
	svc := NewService(&scriptedConnector{}, failingUsage{}, 10, "", 1)

	_, err := svc.Embed(context.Background(), entity.EmbedRequest{Texts: texts(2), ActorID: "user-1"})
	assert.ErrorContains(t, err, "db down")
}
