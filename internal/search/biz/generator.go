package biz

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/deepsearch-labs/deepquery/internal/conversation"
	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
)

// GenerationRequest is one streaming completion call.
type GenerationRequest struct {
	System    string
	History   []conversation.Message
	Prompt    string
	MaxTokens int
}

// Generator streams answer tokens for a built prompt.
type Generator interface {
	Stream(ctx context.Context, req *GenerationRequest, onToken func(token string) error) error
}

// GeneratorConfig configures the answer model.
type GeneratorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// DefaultGenerationModel answers all three search paths.
const DefaultGenerationModel = "llama-3.3-70b-versatile"

// LLMGenerator streams completions from an OpenAI-compatible endpoint.
type LLMGenerator struct {
	client *openai.Client
	model  string
	logger *logger.Logger
}

// NewLLMGenerator creates the answer generator.
func NewLLMGenerator(cfg *GeneratorConfig, log *logger.Logger) (*LLMGenerator, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGenerationModel
	}
	if log == nil {
		log = logger.L()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &LLMGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: log,
	}, nil
}

// Model reports the configured model name.
func (g *LLMGenerator) Model() string {
	return g.model
}

// Stream runs one completion, forwarding each delta to onToken.
func (g *LLMGenerator) Stream(ctx context.Context, req *GenerationRequest, onToken func(token string) error) error {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.System,
	})
	for _, msg := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: 0.1,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("completion stream failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		token := resp.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		if err := onToken(token); err != nil {
			return err
		}
	}
}
