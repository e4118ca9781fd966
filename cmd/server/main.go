package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/conf"
	"github.com/deepsearch-labs/deepquery/internal/conversation"
	"github.com/deepsearch-labs/deepquery/internal/data"
	docbiz "github.com/deepsearch-labs/deepquery/internal/document/biz"
	"github.com/deepsearch-labs/deepquery/internal/document/chunker"
	docdata "github.com/deepsearch-labs/deepquery/internal/document/data"
	"github.com/deepsearch-labs/deepquery/internal/document/embedding"
	docservice "github.com/deepsearch-labs/deepquery/internal/document/service"
	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
	"github.com/deepsearch-labs/deepquery/internal/pkg/sse"
	"github.com/deepsearch-labs/deepquery/internal/search/analyzer"
	searchbiz "github.com/deepsearch-labs/deepquery/internal/search/biz"
	searchservice "github.com/deepsearch-labs/deepquery/internal/search/service"
	"github.com/deepsearch-labs/deepquery/internal/server"
	"github.com/deepsearch-labs/deepquery/internal/websearch"
	"github.com/deepsearch-labs/deepquery/internal/websearch/provider"
	wstypes "github.com/deepsearch-labs/deepquery/internal/websearch/types"
)

var configFile = flag.String("config", "config.yaml", "config file path")

func main() {
	flag.Parse()

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := logger.InitGlobal(&config.Log); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}
	log.Info("config loaded successfully")

	ctx := context.Background()
	d, cleanup, err := data.NewData(ctx, config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// Document pipeline
	documentRepo := docdata.NewDocumentRepo(d.DB)
	docChunker, err := chunker.New(&chunker.Config{
		Size:    config.Documents.ChunkSize,
		Overlap: config.Documents.ChunkOverlap,
	})
	if err != nil {
		log.Fatal("failed to initialize chunker", zap.Error(err))
	}

	embedKey := config.LLM.EmbeddingAPIKey
	if embedKey == "" {
		embedKey = config.LLM.APIKey
	}
	embedder, err := embedding.New(&embedding.Config{
		APIKey:    embedKey,
		BaseURL:   config.LLM.EmbeddingBaseURL,
		Model:     config.LLM.EmbeddingModel,
		Dimension: config.LLM.EmbeddingDimension,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize embedder", zap.Error(err))
	}

	documentUseCase := docbiz.NewUseCase(documentRepo, d.MinIO, d.Milvus, embedder, docChunker, docbiz.Config{
		Collection:         config.Documents.Collection,
		RelevanceThreshold: config.Documents.RelevanceThreshold,
		TopK:               config.Documents.TopK,
		MaxFileSize:        config.Documents.MaxFileSize,
	}, log)

	// Retrieval and generation
	queryAnalyzer, err := analyzer.NewAnalyzer(&analyzer.Config{
		APIKey:  config.LLM.APIKey,
		BaseURL: config.LLM.BaseURL,
		Model:   config.LLM.AnalyzerModel,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize query analyzer", zap.Error(err))
	}

	searchProvider, err := provider.NewFactory().Create(&wstypes.ProviderConfig{
		ID:                wstypes.ProviderID(config.WebSearch.Provider),
		APIKey:            config.WebSearch.APIKey,
		APIHost:           config.WebSearch.APIHost,
		BasicAuthUsername: config.WebSearch.BasicAuthUsername,
		BasicAuthPassword: config.WebSearch.BasicAuthPassword,
		Timeout:           int(config.WebSearch.Timeout / time.Second),
		MaxRetries:        config.WebSearch.MaxRetries,
	})
	if err != nil {
		log.Fatal("failed to initialize search provider", zap.Error(err))
	}
	aggregator := websearch.NewAggregator(searchProvider, log)

	generator, err := searchbiz.NewLLMGenerator(&searchbiz.GeneratorConfig{
		APIKey:  config.LLM.APIKey,
		BaseURL: config.LLM.BaseURL,
		Model:   config.LLM.GenerationModel,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize generator", zap.Error(err))
	}

	conversationStore := conversation.NewStore(d.Redis, config.Conversation.MaxTurns, config.Conversation.TTL, log)

	displayName := config.LLM.ModelDisplayName
	if displayName == "" {
		displayName = generator.Model()
	}
	pipeline := searchbiz.NewPipeline(
		queryAnalyzer,
		documentUseCase,
		aggregator,
		generator,
		conversationStore,
		log,
		searchbiz.WithModelName(generator.Model(), displayName),
	)

	// Services and HTTP surface
	hub := sse.NewHub()
	searchService := searchservice.NewSearchService(pipeline, hub, log)
	documentService := docservice.NewDocumentService(documentUseCase)

	httpServer := server.NewHTTPServer(config, log, searchService, documentService)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()
	log.Info("server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited")
}
