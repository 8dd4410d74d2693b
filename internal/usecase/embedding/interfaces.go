package embedding

import (
	"context"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
)

type EmbeddingConnector interface {
	Embed(ctx context.Context, model string, texts []string) (*entity.EmbeddingBatch, error)
}

type UsageRecorder interface {
	RecordUsage(ctx context.Context, params entity.UsageParams) (*entity.UsageRecord, error)
}
