package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector answers with a canned reply streamed word by word.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{
		logger: logger,
	}
}

func (m *MockConnector) Stream(
	ctx context.Context,
	req entity.GenerationRequest,
	onDelta func(delta string) error,
) (*entity.Completion, error) {
	ctxzap.Info(ctx, "[MOCK] streaming completion", zap.String("model", req.Model))

	question := ""
	if n := len(req.Messages); n > 0 {
		question = req.Messages[n-1].Content
	}
	reply := fmt.Sprintf("Respuesta simulada a: %s", question)

	completion := &entity.Completion{}
	var text strings.Builder
	for i, word := range strings.Fields(reply) {
		if err := ctx.Err(); err != nil {
			completion.Text = text.String()
			return completion, fmt.Errorf("%w: stream completion: %w", entity.ErrProvider, err)
		}
		if i > 0 {
			word = " " + word
		}
		text.WriteString(word)
		if onDelta != nil {
			if err := onDelta(word); err != nil {
				completion.Text = text.String()
				return completion, fmt.Errorf("%w: stream completion: %w", entity.ErrProvider, err)
			}
		}
	}

	completion.Text = text.String()
	completion.Usage = &entity.TokenUsage{
		InputTokens:  (len(req.System) + len(question)) / 4,
		OutputTokens: len(completion.Text) / 4,
	}

	return completion, nil
}
