package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/deepsearch-labs/deepquery/internal/websearch/types"
)

// Provider is one concrete search backend.
type Provider interface {
	// Search executes a single search query.
	Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error)

	// GetID returns the provider ID.
	GetID() types.ProviderID

	// GetName returns the human-readable provider name.
	GetName() string

	// Validate validates the provider configuration.
	Validate() error
}

// BaseProvider carries the HTTP plumbing shared by every provider.
type BaseProvider struct {
	config     *types.ProviderConfig
	httpClient *http.Client
	apiKeys    []string // comma-separated keys rotate per request
	keyIndex   int
}

// NewBaseProvider creates the shared provider base from a validated config.
func NewBaseProvider(config *types.ProviderConfig) *BaseProvider {
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	var apiKeys []string
	if config.APIKey != "" {
		apiKeys = strings.Split(config.APIKey, ",")
		for i := range apiKeys {
			apiKeys[i] = strings.TrimSpace(apiKeys[i])
		}
	}

	return &BaseProvider{
		config:     config,
		httpClient: httpClient,
		apiKeys:    apiKeys,
	}
}

func (b *BaseProvider) GetID() types.ProviderID {
	return b.config.ID
}

func (b *BaseProvider) GetName() string {
	return b.config.Name
}

func (b *BaseProvider) GetConfig() *types.ProviderConfig {
	return b.config
}

// GetAPIKey returns the next API key, rotating through configured keys.
func (b *BaseProvider) GetAPIKey() string {
	if len(b.apiKeys) == 0 {
		return ""
	}

	key := b.apiKeys[b.keyIndex]
	b.keyIndex = (b.keyIndex + 1) % len(b.apiKeys)
	return key
}

// BuildDefaultHeaders builds the headers common to every provider request.
func (b *BaseProvider) BuildDefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   "DeepQuery/1.0",
	}
}

// DoRequest executes an HTTP request with exponential-backoff retries.
func (b *BaseProvider) DoRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	maxRetries := b.config.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		resp, err := b.httpClient.Do(req.WithContext(ctx))
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if i < maxRetries-1 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

func (b *BaseProvider) Validate() error {
	return b.config.Validate()
}
