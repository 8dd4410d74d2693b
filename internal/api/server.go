package api

import (
	"net/http"
	"time"

	chatapi "github.com/facundoguellutn/stoodeochat/internal/api/chat"
	"github.com/facundoguellutn/stoodeochat/internal/api/docs"
	documentapi "github.com/facundoguellutn/stoodeochat/internal/api/document"
	"github.com/facundoguellutn/stoodeochat/internal/api/middleware"
	searchapi "github.com/facundoguellutn/stoodeochat/internal/api/search"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 2 * time.Minute

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// SetupRouter creates and configures the HTTP router
func SetupRouter(
	cfg RouterConfig,
	documentHandler *documentapi.Handler,
	searchHandler *searchapi.Handler,
	chatHandler *chatapi.Handler,
	logger *zap.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Ingestion is not bounded: POST /documents runs until indexing ends.
	bounded := chimiddleware.Timeout(cfg.RequestTimeout)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, map[string]string{"status": "healthy"})
	})

	docs.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireIdentity)

		documentapi.RegisterRoutes(r, documentHandler, bounded)

		r.Group(func(r chi.Router) {
			r.Use(bounded)

			searchapi.RegisterRoutes(r, searchHandler)
			chatapi.RegisterRoutes(r, chatHandler)
		})
	})

	return r
}
