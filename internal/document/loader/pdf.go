package loader

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// PDFLoader extracts text per page using go-fitz (MuPDF).
type PDFLoader struct{}

func (l *PDFLoader) Load(_ context.Context, reader io.Reader) (*Content, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF data: %w", err)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	content := &Content{}
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			// Pages that fail extraction are skipped, not fatal.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		content.Pages = append(content.Pages, Page{Number: i + 1, Text: text})
	}
	return content, nil
}
