package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/facundoguellutn/stoodeochat/internal/config"
	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/integration/common"
	pkghttp "github.com/facundoguellutn/stoodeochat/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Connector streams chat completions from an OpenAI-compatible endpoint.
type Connector struct {
	config    config.LLMConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.LLMConnectorConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		// The generation timeout is applied per call through the context.
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger, pkghttp.WithStreaming()),
		config:    cfg,
		logger:    logger,
	}
}

// Stream generates a completion and hands every text delta to onDelta. The
// returned Completion is non-nil even on error and holds the text received
// before the failure.
func (c *Connector) Stream(
	ctx context.Context,
	req entity.GenerationRequest,
	onDelta func(delta string) error,
) (*entity.Completion, error) {
	ctxzap.Info(ctx, "streaming completion", zap.String("model", req.Model), zap.Int("messages", len(req.Messages)))

	body := c.buildRequest(req)

	var (
		text       strings.Builder
		completion = &entity.Completion{}
	)

	err := c.connector.DoStream(ctx, http.MethodPost, c.config.Endpoint, body, func(r io.Reader) error {
		return pkghttp.ReadSSE(r, func(data []byte) error {
			var chunk entity.ChatCompletionResponse
			if err := json.Unmarshal(data, &chunk); err != nil {
				return fmt.Errorf("decode stream chunk: %w", err)
			}

			if chunk.Usage != nil {
				completion.Usage = &entity.TokenUsage{
					InputTokens:  chunk.Usage.PromptTokens,
					OutputTokens: chunk.Usage.CompletionTokens,
				}
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				text.WriteString(choice.Delta.Content)
				if onDelta != nil {
					if err := onDelta(choice.Delta.Content); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})

	completion.Text = text.String()
	if err != nil {
		return completion, fmt.Errorf("%w: stream completion: %w", entity.ErrProvider, err)
	}

	ctxzap.Info(ctx, "completion streamed",
		zap.Int("text_length", len(completion.Text)),
		zap.Bool("usage_reported", completion.Usage != nil),
	)

	return completion, nil
}

func (c *Connector) buildRequest(req entity.GenerationRequest) *entity.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	messages := make([]entity.ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, entity.ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	temperature := c.config.Temperature

	return &entity.ChatCompletionRequest{
		Model:         model,
		Messages:      messages,
		Stream:        true,
		StreamOptions: &entity.StreamOptions{IncludeUsage: true},
		Temperature:   &temperature,
	}
}
