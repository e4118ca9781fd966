// Package types defines the document feature's domain model.
package types

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// Processing status of an uploaded document.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// FileType is the recognised upload format.
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeMarkdown FileType = "markdown"
	FileTypeText     FileType = "text"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrFileTooLarge        = errors.New("file exceeds maximum size")
)

// DetectFileType classifies a filename by extension.
func DetectFileType(filename string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FileTypePDF, nil
	case ".md", ".markdown":
		return FileTypeMarkdown, nil
	case ".txt":
		return FileTypeText, nil
	default:
		return "", ErrUnsupportedFileType
	}
}

// Document is the metadata row for one uploaded file.
type Document struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SessionID   string    `gorm:"index;type:varchar(64);not null" json:"session_id"`
	Filename    string    `gorm:"type:varchar(512);not null" json:"filename"`
	ContentType string    `gorm:"type:varchar(128)" json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   int       `json:"page_count"`
	ChunkCount  int       `json:"chunk_count"`
	Status      string    `gorm:"type:varchar(16);default:processing" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}

// Chunk is one embeddable slice of a document.
type Chunk struct {
	DocumentID string
	Index      int
	PageNumber int
	Content    string
	TokenCount int
}

// ScoredChunk is a retrieval hit used as answer context.
type ScoredChunk struct {
	Content    string  `json:"content"`
	Filename   string  `json:"filename"`
	PageNumber int     `json:"page_number"`
	Similarity float64 `json:"similarity"`
}

// RelevanceResult is the verdict on whether session documents can answer a
// query.
type RelevanceResult struct {
	ShouldUseDocuments bool          `json:"should_use_documents"`
	RelevanceScore     float64       `json:"relevance_score"`
	AverageRelevance   float64       `json:"average_relevance"`
	Reason             string        `json:"reason"`
	Chunks             []ScoredChunk `json:"relevant_chunks,omitempty"`
}
