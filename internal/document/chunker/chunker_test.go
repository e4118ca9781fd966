package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepsearch-labs/deepquery/internal/document/loader"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(&Config{Size: 0})
	assert.Error(t, err)

	_, err = New(&Config{Size: 10, Overlap: 10})
	assert.Error(t, err)

	c, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestChunk_SplitsLongPage(t *testing.T) {
	c, err := New(&Config{Size: 20, Overlap: 5})
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	content := &loader.Content{Pages: []loader.Page{{Number: 1, Text: text}}}

	chunks, err := c.Chunk(context.Background(), "doc1", content)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, "doc1", chunk.DocumentID)
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, 1, chunk.PageNumber)
		assert.LessOrEqual(t, chunk.TokenCount, 20)
		assert.NotEmpty(t, chunk.Content)
	}
}

func TestChunk_KeepsPageAttribution(t *testing.T) {
	c, err := New(&Config{Size: 512, Overlap: 50})
	require.NoError(t, err)

	content := &loader.Content{Pages: []loader.Page{
		{Number: 1, Text: "first page text"},
		{Number: 3, Text: "third page text"},
	}}

	chunks, err := c.Chunk(context.Background(), "doc1", content)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 3, chunks[1].PageNumber)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestChunk_EmptyContent(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), "doc1", &loader.Content{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
