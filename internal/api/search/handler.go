package search

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/facundoguellutn/stoodeochat/internal/api/middleware"
	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/logger"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/response"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const maxBodySize = 64 << 10

type Handler struct {
	searcher Searcher
}

func NewHandler(searcher Searcher) *Handler {
	return &Handler{searcher: searcher}
}

// Search handles POST /search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Search")
	id := middleware.IdentityFrom(ctx)

	var q entity.SearchQuery
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&q); err != nil {
		response.UsecaseError(ctx, w, fmt.Errorf("%w: invalid JSON body: %v", entity.ErrInvalidParameter, err))
		return
	}
	if q.Limit < 0 {
		response.UsecaseError(ctx, w, fmt.Errorf("%w: limit must not be negative", entity.ErrInvalidParameter))
		return
	}
	if q.MinScore != nil && (*q.MinScore < -1 || *q.MinScore > 1) {
		response.UsecaseError(ctx, w, fmt.Errorf("%w: min_score must be within [-1, 1]", entity.ErrInvalidParameter))
		return
	}

	results, err := h.searcher.SearchSimilarChunks(ctx, id.TenantID, id.UserID, q)
	if err != nil {
		response.UsecaseError(ctx, w, err)
		return
	}

	ctxzap.Debug(ctx, "search answered", zap.Int("results", len(results)))
	response.Success(w, &entity.SearchResponse{Results: results})
}
