package embedding

import (
	"context"
	"fmt"
	"maps"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MaxBatchSize is the provider's per-request input limit.
const MaxBatchSize = 2048

// Service embeds texts in capped batches and meters every batch.
type Service struct {
	connector    EmbeddingConnector
	usage        UsageRecorder
	batchSize    int
	defaultModel string
	// dimensions is the required vector width; 0 accepts any width.
	dimensions int
}

func NewService(
	connector EmbeddingConnector,
	usage UsageRecorder,
	batchSize int,
	defaultModel string,
	dimensions int,
) *Service {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	if defaultModel == "" {
		defaultModel = entity.DefaultEmbeddingModel
	}

	return &Service{
		connector:    connector,
		usage:        usage,
		batchSize:    batchSize,
		defaultModel: defaultModel,
		dimensions:   max(dimensions, 0),
	}
}

// Embed returns one vector per input text, in input order. A failing batch
// fails the whole call and no vectors are returned.
func (s *Service) Embed(ctx context.Context, req entity.EmbedRequest) ([][]float32, error) {
	if req.ActorID == "" {
		return nil, entity.ErrMissingActor
	}
	if len(req.Texts) == 0 {
		return [][]float32{}, nil
	}

	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	vectors := make([][]float32, 0, len(req.Texts))
	batchCount := (len(req.Texts) + s.batchSize - 1) / s.batchSize

	for index := 0; index < batchCount; index++ {
		start := index * s.batchSize
		end := min(start+s.batchSize, len(req.Texts))
		texts := req.Texts[start:end]

		batch, err := s.connector.Embed(ctx, model, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", index+1, batchCount, err)
		}
		if len(batch.Vectors) != len(texts) {
			return nil, fmt.Errorf("embed batch %d/%d: %w: got %d vectors for %d texts",
				index+1, batchCount, entity.ErrEmbeddingMismatch, len(batch.Vectors), len(texts))
		}
		if err := s.checkDimensions(batch.Vectors); err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", index+1, batchCount, err)
		}

		if _, err := s.usage.RecordUsage(ctx, entity.UsageParams{
			TenantID:    req.TenantID,
			ActorID:     req.ActorID,
			CallType:    entity.CallTypeEmbedding,
			Model:       model,
			InputTokens: batch.InputTokens,
			Metadata:    batchMetadata(req.Metadata, len(texts), index),
		}); err != nil {
			return nil, fmt.Errorf("record embedding usage: %w", err)
		}

		vectors = append(vectors, batch.Vectors...)
	}

	ctxzap.Debug(ctx, "texts embedded",
		zap.String("model", model),
		zap.Int("texts", len(req.Texts)),
		zap.Int("batches", batchCount),
	)

	return vectors, nil
}

func (s *Service) checkDimensions(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) == 0 || (s.dimensions > 0 && len(v) != s.dimensions) {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d",
				entity.ErrEmbeddingMismatch, i, len(v), s.dimensions)
		}
	}
	return nil
}

func batchMetadata(caller map[string]any, size, index int) map[string]any {
	metadata := make(map[string]any, len(caller)+2)
	maps.Copy(metadata, caller)
	metadata["batch_size"] = size
	metadata["batch_index"] = index
	return metadata
}
