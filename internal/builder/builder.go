package builder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/facundoguellutn/stoodeochat/internal/api"
	chatapi "github.com/facundoguellutn/stoodeochat/internal/api/chat"
	documentapi "github.com/facundoguellutn/stoodeochat/internal/api/document"
	searchapi "github.com/facundoguellutn/stoodeochat/internal/api/search"
	"github.com/facundoguellutn/stoodeochat/internal/chunker"
	"github.com/facundoguellutn/stoodeochat/internal/config"
	"github.com/facundoguellutn/stoodeochat/internal/extractor"
	embeddingconn "github.com/facundoguellutn/stoodeochat/internal/integration/embedding"
	"github.com/facundoguellutn/stoodeochat/internal/integration/llm"
	"github.com/facundoguellutn/stoodeochat/internal/metering"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/formatter"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/validator"
	"github.com/facundoguellutn/stoodeochat/internal/usecase/chat"
	"github.com/facundoguellutn/stoodeochat/internal/usecase/document"
	"github.com/facundoguellutn/stoodeochat/internal/usecase/embedding"
	"github.com/facundoguellutn/stoodeochat/internal/usecase/retrieval"
	"github.com/facundoguellutn/stoodeochat/internal/usecase/tenant"
	"go.uber.org/zap"
)

func Build() (*App, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
		zap.String("storage_driver", cfg.StorageDriver),
	)

	if err := setupLicenses(cfg, logger); err != nil {
		return nil, fmt.Errorf("setup licenses: %w", err)
	}

	store, err := setupStorage(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	logger.Info("Repositories initialized")

	handler := buildHandler(cfg, store, logger)

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Answers stream for up to the generation timeout.
		WriteTimeout: cfg.HTTPRequestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server:  server,
		storage: store,
		logger:  logger,
	}, nil
}

// buildHandler wires use cases and handlers over the given storage.
func buildHandler(cfg *config.Config, store *storage, logger *zap.Logger) http.Handler {
	var embeddingConnector embedding.EmbeddingConnector
	var llmConnector chat.LLMConnector

	if cfg.EnableMocks {
		logger.Info("Using mock connectors for external services")
		embeddingConnector = embeddingconn.NewMockConnector(cfg.EmbeddingConnectorCfg.Dimensions, logger)
		llmConnector = llm.NewMockConnector(logger)
	} else {
		logger.Info("Using real connectors for external services")
		embeddingConnector = embeddingconn.NewConnector(cfg.EmbeddingConnectorCfg, logger)
		llmConnector = llm.NewConnector(cfg.LLMConnectorCfg, logger)
	}

	meter := metering.NewMeter(store.usage, cfg.Pricing, metering.ChannelPricing{
		Cost:   cfg.ChannelCfg.MessageCost,
		Model:  cfg.ChannelCfg.Model,
		Source: cfg.ChannelCfg.Source,
	})
	resolver := tenant.NewResolver(store.tenants, cfg.TenantCacheTTL)
	embedder := embedding.NewService(
		embeddingConnector,
		meter,
		cfg.EmbeddingConnectorCfg.BatchSize,
		cfg.EmbeddingConnectorCfg.Model,
		cfg.EmbeddingConnectorCfg.Dimensions,
	)

	searcher := retrieval.NewSearcher(embedder, resolver, store.chunks, retrieval.Options{
		Limit:               cfg.RetrievalCfg.Limit,
		MaxLimit:            cfg.RetrievalCfg.MaxLimit,
		MinScore:            cfg.RetrievalCfg.MinScore,
		CandidateMultiplier: cfg.RetrievalCfg.CandidateMultiplier,
		MaxCandidates:       cfg.RetrievalCfg.MaxCandidates,
	})

	documentUC := document.NewUsecase(
		store.documents,
		store.chunks,
		resolver,
		extractor.New(),
		chunker.New(chunker.Options{
			MinSize: cfg.ChunkingCfg.MinSize,
			MaxSize: cfg.ChunkingCfg.MaxSize,
			Overlap: cfg.ChunkingCfg.Overlap,
		}),
		embedder,
		formatter.NewFactory(formatterOptions(cfg)...),
	)

	chatUC := chat.NewUsecase(
		store.conversations,
		searcher,
		resolver,
		llmConnector,
		meter,
		chat.Options{
			GenerationTimeout: cfg.LLMConnectorCfg.GenerationTimeout,
			HistoryLimit:      cfg.LLMConnectorCfg.HistoryLimit,
			ReplyMaxChars:     cfg.ChannelCfg.ReplyMaxChars,
			ChannelSource:     cfg.ChannelCfg.Source,
		},
	)
	logger.Info("Use cases initialized")

	fileValidator := validator.NewFileValidator(cfg.FileUploadCfg)

	router := api.SetupRouter(
		api.RouterConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			RequestTimeout: cfg.HTTPRequestTimeout,
		},
		documentapi.NewHandler(documentUC, fileValidator, cfg.FileUploadCfg),
		searchapi.NewHandler(searcher),
		chatapi.NewHandler(chatUC),
		logger,
	)
	logger.Info("HTTP router configured")

	return router
}
