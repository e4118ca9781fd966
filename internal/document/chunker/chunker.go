// Package chunker slices extracted text into token-bounded chunks that keep
// their page attribution for citations.
package chunker

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/deepsearch-labs/deepquery/internal/document/loader"
	"github.com/deepsearch-labs/deepquery/internal/document/types"
)

// Config sets the token window per chunk.
type Config struct {
	Size     int    // tokens per chunk
	Overlap  int    // tokens shared between consecutive chunks
	Encoding string // default cl100k_base
}

// Chunker splits page text on token boundaries.
type Chunker struct {
	encoding *tiktoken.Tiktoken
	size     int
	overlap  int
}

// New creates a token chunker.
func New(cfg *Config) (*Chunker, error) {
	if cfg == nil {
		cfg = &Config{Size: 512, Overlap: 50}
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size)")
	}
	encodingName := cfg.Encoding
	if encodingName == "" {
		encodingName = "cl100k_base"
	}

	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding: %w", err)
	}
	return &Chunker{encoding: encoding, size: cfg.Size, overlap: cfg.Overlap}, nil
}

// Chunk splits every page of the content. Pages are chunked independently so
// each chunk cites exactly one page.
func (c *Chunker) Chunk(ctx context.Context, documentID string, content *loader.Content) ([]types.Chunk, error) {
	var chunks []types.Chunk
	index := 0
	for _, page := range content.Pages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tokens := c.encoding.Encode(page.Text, nil, nil)
		for start := 0; start < len(tokens); start += c.size - c.overlap {
			end := start + c.size
			if end > len(tokens) {
				end = len(tokens)
			}
			chunkTokens := tokens[start:end]
			chunks = append(chunks, types.Chunk{
				DocumentID: documentID,
				Index:      index,
				PageNumber: page.Number,
				Content:    c.encoding.Decode(chunkTokens),
				TokenCount: len(chunkTokens),
			})
			index++
			if end == len(tokens) {
				break
			}
		}
	}
	return chunks, nil
}

// CountTokens reports the token length of a text.
func (c *Chunker) CountTokens(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}
