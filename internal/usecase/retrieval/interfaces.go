package retrieval

import (
	"context"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
)

type Embedder interface {
	Embed(ctx context.Context, req entity.EmbedRequest) ([][]float32, error)
}

type TenantResolver interface {
	Resolve(ctx context.Context, id entity.TenantID) (*entity.Tenant, error)
}
