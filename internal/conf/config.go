// Package conf loads and validates the service configuration.
package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/deepsearch-labs/deepquery/internal/pkg/database"
	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
	"github.com/deepsearch-labs/deepquery/internal/pkg/milvus"
	"github.com/deepsearch-labs/deepquery/internal/pkg/minio"
	"github.com/deepsearch-labs/deepquery/internal/pkg/redis"
)

// Config is the full service configuration tree.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     database.Config    `mapstructure:"database"`
	Redis        redis.Config       `mapstructure:"redis"`
	MinIO        minio.Config       `mapstructure:"minio"`
	Milvus       milvus.Config      `mapstructure:"milvus"`
	Log          logger.Config      `mapstructure:"log"`
	LLM          LLMConfig          `mapstructure:"llm"`
	WebSearch    WebSearchConfig    `mapstructure:"websearch"`
	Documents    DocumentsConfig    `mapstructure:"documents"`
	Conversation ConversationConfig `mapstructure:"conversation"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LLMConfig points every model call at one OpenAI-compatible endpoint.
type LLMConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	AnalyzerModel      string `mapstructure:"analyzer_model"`
	GenerationModel    string `mapstructure:"generation_model"`
	ModelDisplayName   string `mapstructure:"model_display_name"`
	EmbeddingAPIKey    string `mapstructure:"embedding_api_key"`
	EmbeddingBaseURL   string `mapstructure:"embedding_base_url"`
	EmbeddingModel     string `mapstructure:"embedding_model"`
	EmbeddingDimension int    `mapstructure:"embedding_dimension"`
}

// WebSearchConfig selects and credentials the search provider.
type WebSearchConfig struct {
	Provider          string        `mapstructure:"provider"` // tavily, searxng, exa
	APIKey            string        `mapstructure:"api_key"`
	APIHost           string        `mapstructure:"api_host"`
	BasicAuthUsername string        `mapstructure:"basic_auth_username"`
	BasicAuthPassword string        `mapstructure:"basic_auth_password"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// DocumentsConfig tunes the upload pipeline.
type DocumentsConfig struct {
	Collection         string  `mapstructure:"collection"`
	MaxFileSize        int64   `mapstructure:"max_file_size"`
	RelevanceThreshold float64 `mapstructure:"relevance_threshold"`
	TopK               int     `mapstructure:"top_k"`
	ChunkSize          int     `mapstructure:"chunk_size"`
	ChunkOverlap       int     `mapstructure:"chunk_overlap"`
}

// ConversationConfig bounds per-session rolling history.
type ConversationConfig struct {
	MaxTurns int           `mapstructure:"max_turns"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LoadConfig reads the configuration file and overlays environment variables.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks cross-section requirements before anything connects.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api_key is required")
	}
	if c.WebSearch.Provider == "" {
		return fmt.Errorf("websearch provider is required")
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.MinIO.Validate(); err != nil {
		return err
	}
	return c.Milvus.Validate()
}
