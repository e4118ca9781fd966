// Package embedding generates chunk vectors through an OpenAI-compatible
// embeddings endpoint.
package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
)

// Config configures the embeddings client.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
}

// Embedder wraps the embeddings API.
type Embedder struct {
	client    *openai.Client
	model     string
	dimension int
	logger    *logger.Logger
}

// New creates an embedder.
func New(cfg *Config, log *logger.Logger) (*Embedder, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if log == nil {
		log = logger.L()
	}

	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		logger:    log,
	}, nil
}

// Embed generates a vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding generated")
	}
	return vectors[0], nil
}

// BatchEmbed generates vectors for many texts in one request.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimension,
	})
	if err != nil {
		e.logger.Error("failed to create embeddings",
			zap.Int("text_count", len(texts)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

// Dimension reports the configured vector width.
func (e *Embedder) Dimension() int {
	return e.dimension
}
