package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/facundoguellutn/stoodeochat/internal/config"
	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/integration/common"
	pkgRetry "github.com/facundoguellutn/stoodeochat/internal/pkg/retry"
	pkghttp "github.com/facundoguellutn/stoodeochat/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Connector calls an OpenAI-compatible embeddings endpoint.
type Connector struct {
	config    config.EmbeddingConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.EmbeddingConnectorConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

// Embed sends one batch and returns its vectors in input order.
func (c *Connector) Embed(ctx context.Context, model string, texts []string) (*entity.EmbeddingBatch, error) {
	ctxzap.Debug(ctx, "requesting embeddings",
		zap.String("model", model),
		zap.Int("batch_size", len(texts)),
	)

	req := &entity.EmbeddingsRequest{
		Model:      model,
		Input:      texts,
		Dimensions: c.config.Dimensions,
	}

	var resp entity.EmbeddingsResponse
	err := pkgRetry.Do(ctx, c.config.Retry(), "embeddings", func(ctx context.Context) error {
		resp = entity.EmbeddingsResponse{}
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.Endpoint, req, &resp)
	}, pkghttp.IsTemporary)
	if err != nil {
		return nil, fmt.Errorf("%w: embeddings request: %w", entity.ErrProvider, err)
	}

	vectors, err := orderByIndex(resp.Data, len(texts))
	if err != nil {
		return nil, err
	}

	ctxzap.Debug(ctx, "embeddings received",
		zap.Int("vectors", len(vectors)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
	)

	return &entity.EmbeddingBatch{
		Vectors:     vectors,
		InputTokens: resp.Usage.PromptTokens,
	}, nil
}

// orderByIndex places each vector at its reported index. Providers may answer
// out of order.
func orderByIndex(data []entity.EmbeddingData, want int) ([][]float32, error) {
	if len(data) != want {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", entity.ErrEmbeddingMismatch, len(data), want)
	}

	vectors := make([][]float32, want)
	seen := make([]bool, want)
	for _, d := range data {
		if d.Index < 0 || d.Index >= want || seen[d.Index] {
			return nil, fmt.Errorf("%w: bad or duplicate index %d", entity.ErrEmbeddingMismatch, d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", entity.ErrEmbeddingMismatch, d.Index)
		}
		seen[d.Index] = true
		vectors[d.Index] = d.Embedding
	}

	return vectors, nil
}
