// Package loader extracts per-page plain text from uploaded files.
package loader

import (
	"context"
	"io"

	"github.com/deepsearch-labs/deepquery/internal/document/types"
)

// Page is one page (or whole file for unpaged formats) of extracted text.
type Page struct {
	Number int
	Text   string
}

// Content is a loaded document's text.
type Content struct {
	Pages []Page
}

// Loader extracts text from one file format.
type Loader interface {
	Load(ctx context.Context, reader io.Reader) (*Content, error)
}

// ForType returns the loader for a detected file type.
func ForType(ft types.FileType) (Loader, error) {
	switch ft {
	case types.FileTypePDF:
		return &PDFLoader{}, nil
	case types.FileTypeMarkdown:
		return &MarkdownLoader{}, nil
	case types.FileTypeText:
		return &TextLoader{}, nil
	default:
		return nil, types.ErrUnsupportedFileType
	}
}
