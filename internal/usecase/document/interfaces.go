package document

import (
	"context"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/formatter"
)

type TextExtractor interface {
	Extract(ctx context.Context, content []byte, mimeType string) (string, error)
}

type Chunker interface {
	Split(text string) []string
}

type Embedder interface {
	Embed(ctx context.Context, req entity.EmbedRequest) ([][]float32, error)
}

type TenantResolver interface {
	Resolve(ctx context.Context, id entity.TenantID) (*entity.Tenant, error)
}

type FormatterFactory interface {
	Create(format entity.ExportFormat) (formatter.Formatter, error)
}
