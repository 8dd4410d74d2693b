package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector produces deterministic bag-of-words vectors, so texts sharing
// words land close together without calling a provider.
type MockConnector struct {
	dimensions int
	logger     *zap.Logger
}

func NewMockConnector(dimensions int, logger *zap.Logger) *MockConnector {
	if dimensions <= 0 {
		dimensions = entity.EmbeddingDimensions
	}
	return &MockConnector{
		dimensions: dimensions,
		logger:     logger,
	}
}

func (m *MockConnector) Embed(ctx context.Context, model string, texts []string) (*entity.EmbeddingBatch, error) {
	ctxzap.Info(ctx, "[MOCK] embedding batch", zap.String("model", model), zap.Int("batch_size", len(texts)))

	batch := &entity.EmbeddingBatch{Vectors: make([][]float32, len(texts))}
	for i, text := range texts {
		vec, tokens := m.vectorize(text)
		batch.Vectors[i] = vec
		batch.InputTokens += tokens
	}

	return batch, nil
}

func (m *MockConnector) vectorize(text string) ([]float32, int) {
	vec := make([]float32, m.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(m.dimensions)] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec, len(words)
}
