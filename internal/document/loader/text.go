package loader

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// TextLoader passes plain text through untouched.
type TextLoader struct{}

func (l *TextLoader) Load(_ context.Context, reader io.Reader) (*Content, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read text content: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return &Content{}, nil
	}
	return &Content{Pages: []Page{{Number: 1, Text: text}}}, nil
}
