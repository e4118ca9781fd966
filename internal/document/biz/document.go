// Package biz implements the document business logic: ingestion of uploaded
// files into object storage and the vector index, and relevance evaluation
// against a session's corpus.
package biz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus/client/v2/column"
	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/document/chunker"
	"github.com/deepsearch-labs/deepquery/internal/document/data"
	"github.com/deepsearch-labs/deepquery/internal/document/loader"
	"github.com/deepsearch-labs/deepquery/internal/document/types"
	apperrors "github.com/deepsearch-labs/deepquery/internal/pkg/errors"
	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
	"github.com/deepsearch-labs/deepquery/internal/pkg/milvus"
)

const (
	// DefaultCollection holds one vector row per chunk across all sessions.
	DefaultCollection = "document_chunks"

	// DefaultRelevanceThreshold is the minimum cosine similarity for a
	// session's documents to be considered able to answer a query.
	DefaultRelevanceThreshold = 0.10

	// DefaultTopK bounds how many chunks a relevance search inspects.
	DefaultTopK = 5

	// DefaultMaxFileSize caps uploads at 10 MiB.
	DefaultMaxFileSize = 10 << 20
)

// VectorStore is the slice of the milvus client the pipeline needs.
type VectorStore interface {
	Insert(ctx context.Context, collection string, cols ...column.Column) (int64, error)
	Search(ctx context.Context, collection string, vector []float32, topK int, filter string, outputFields []string) ([]milvus.Hit, error)
	Delete(ctx context.Context, collection, filter string) error
}

// ObjectStore is the slice of the minio client the pipeline needs.
type ObjectStore interface {
	PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	RemoveObject(ctx context.Context, objectName string) error
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config tunes the document pipeline.
type Config struct {
	Collection         string
	RelevanceThreshold float64
	TopK               int
	MaxFileSize        int64
}

// UseCase wires the document pipeline together.
type UseCase struct {
	repo     data.DocumentRepo
	objects  ObjectStore
	vectors  VectorStore
	embedder Embedder
	chunker  *chunker.Chunker
	cfg      Config
	logger   *logger.Logger
}

// NewUseCase creates the document use case.
func NewUseCase(repo data.DocumentRepo, objects ObjectStore, vectors VectorStore, embedder Embedder, ck *chunker.Chunker, cfg Config, log *logger.Logger) *UseCase {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.RelevanceThreshold == 0 {
		cfg.RelevanceThreshold = DefaultRelevanceThreshold
	}
	if cfg.TopK == 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if log == nil {
		log = logger.L()
	}
	return &UseCase{
		repo:     repo,
		objects:  objects,
		vectors:  vectors,
		embedder: embedder,
		chunker:  ck,
		cfg:      cfg,
		logger:   log,
	}
}

// UploadInput describes one incoming file.
type UploadInput struct {
	SessionID   string
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// Upload runs the full ingestion pipeline: store the raw file, extract text,
// chunk, embed and index. The metadata row tracks processing status so a
// failed ingestion stays visible to the session.
func (uc *UseCase) Upload(ctx context.Context, in *UploadInput) (*types.Document, error) {
	fileType, err := types.DetectFileType(in.Filename)
	if err != nil {
		return nil, err
	}
	if in.Size > uc.cfg.MaxFileSize {
		return nil, types.ErrFileTooLarge
	}

	doc := &types.Document{
		ID:          uuid.New().String(),
		SessionID:   in.SessionID,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		SizeBytes:   in.Size,
		Status:      types.StatusProcessing,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	objectName := uc.objectName(doc)
	if err := uc.objects.PutObject(ctx, objectName, bytes.NewReader(in.Data), in.Size, in.ContentType); err != nil {
		uc.markFailed(ctx, doc)
		return nil, apperrors.Wrap(err, apperrors.ErrDocStorageFailed, objectName)
	}

	if err := uc.index(ctx, doc, fileType, in.Data); err != nil {
		uc.markFailed(ctx, doc)
		return nil, err
	}

	doc.Status = types.StatusReady
	if err := uc.repo.Update(ctx, doc); err != nil {
		return nil, err
	}

	uc.logger.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("session_id", doc.SessionID),
		zap.String("filename", doc.Filename),
		zap.Int("pages", doc.PageCount),
		zap.Int("chunks", doc.ChunkCount))
	return doc, nil
}

func (uc *UseCase) index(ctx context.Context, doc *types.Document, fileType types.FileType, raw []byte) error {
	ld, err := loader.ForType(fileType)
	if err != nil {
		return err
	}
	content, err := ld.Load(ctx, bytes.NewReader(raw))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDocProcessingFailed, "text extraction")
	}
	doc.PageCount = len(content.Pages)

	chunks, err := uc.chunker.Chunk(ctx, doc.ID, content)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDocProcessingFailed, "chunking")
	}
	doc.ChunkCount = len(chunks)
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := uc.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDocEmbeddingFailed)
	}
	if len(vectors) != len(chunks) {
		return apperrors.New(apperrors.ErrDocEmbeddingFailed,
			fmt.Sprintf("count mismatch: %d chunks, %d vectors", len(chunks), len(vectors)))
	}

	sessionIDs := make([]string, len(chunks))
	documentIDs := make([]string, len(chunks))
	filenames := make([]string, len(chunks))
	pageNumbers := make([]int64, len(chunks))
	contents := make([]string, len(chunks))
	for i, ch := range chunks {
		sessionIDs[i] = doc.SessionID
		documentIDs[i] = doc.ID
		filenames[i] = doc.Filename
		pageNumbers[i] = int64(ch.PageNumber)
		contents[i] = ch.Content
	}

	dim := len(vectors[0])
	_, err = uc.vectors.Insert(ctx, uc.cfg.Collection,
		column.NewColumnVarChar("session_id", sessionIDs),
		column.NewColumnVarChar("document_id", documentIDs),
		column.NewColumnVarChar("filename", filenames),
		column.NewColumnInt64("page_number", pageNumbers),
		column.NewColumnVarChar("content", contents),
		column.NewColumnFloatVector("vector", dim, vectors),
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDocVectorDBFailed, "insert chunks")
	}
	return nil
}

// HasDocuments reports whether the session has any uploaded documents.
func (uc *UseCase) HasDocuments(ctx context.Context, sessionID string) (bool, error) {
	count, err := uc.repo.CountBySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// EvaluateRelevance decides whether a session's documents can answer the
// query. The verdict is driven by the best single match: one strongly
// relevant chunk justifies the document path even when the rest of the
// corpus is about something else.
func (uc *UseCase) EvaluateRelevance(ctx context.Context, sessionID, query string) (*types.RelevanceResult, error) {
	count, err := uc.repo.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return &types.RelevanceResult{Reason: "No documents found"}, nil
	}

	vector, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDocEmbeddingFailed, "query embedding")
	}

	filter := fmt.Sprintf("session_id == %q", sessionID)
	hits, err := uc.vectors.Search(ctx, uc.cfg.Collection, vector, uc.cfg.TopK, filter,
		[]string{"filename", "page_number", "content"})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDocVectorDBFailed, "relevance search")
	}
	if len(hits) == 0 {
		return &types.RelevanceResult{Reason: "No relevant chunks found"}, nil
	}

	var maxSim, sum float64
	chunks := make([]types.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Score > maxSim {
			maxSim = hit.Score
		}
		sum += hit.Score
		chunks = append(chunks, types.ScoredChunk{
			Content:    stringField(hit.Fields, "content"),
			Filename:   stringField(hit.Fields, "filename"),
			PageNumber: intField(hit.Fields, "page_number"),
			Similarity: hit.Score,
		})
	}
	avg := sum / float64(len(hits))

	result := &types.RelevanceResult{
		RelevanceScore:   maxSim,
		AverageRelevance: avg,
		Chunks:           chunks,
	}
	if maxSim >= uc.cfg.RelevanceThreshold {
		result.ShouldUseDocuments = true
		result.Reason = "relevant_documents"
	} else {
		result.Reason = "low_relevance"
	}

	uc.logger.Debug("relevance evaluated",
		zap.String("session_id", sessionID),
		zap.Float64("max_similarity", maxSim),
		zap.Float64("avg_similarity", avg),
		zap.Bool("use_documents", result.ShouldUseDocuments))
	return result, nil
}

// ListBySession returns a session's documents, newest first.
func (uc *UseCase) ListBySession(ctx context.Context, sessionID string) ([]*types.Document, error) {
	return uc.repo.ListBySession(ctx, sessionID)
}

// Delete removes a document's vectors, stored file and metadata row.
func (uc *UseCase) Delete(ctx context.Context, id string) error {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	filter := fmt.Sprintf("document_id == %q", doc.ID)
	if err := uc.vectors.Delete(ctx, uc.cfg.Collection, filter); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDocVectorDBFailed, "delete chunks")
	}
	if err := uc.objects.RemoveObject(ctx, uc.objectName(doc)); err != nil {
		uc.logger.Warn("failed to remove stored file",
			zap.String("document_id", doc.ID),
			zap.Error(err))
	}
	return uc.repo.Delete(ctx, doc.ID)
}

func (uc *UseCase) objectName(doc *types.Document) string {
	return fmt.Sprintf("%s/%s/%s", doc.SessionID, doc.ID, doc.Filename)
}

func (uc *UseCase) markFailed(ctx context.Context, doc *types.Document) {
	doc.Status = types.StatusFailed
	doc.UpdatedAt = time.Now()
	if err := uc.repo.Update(ctx, doc); err != nil {
		uc.logger.Error("failed to mark document as failed",
			zap.String("document_id", doc.ID),
			zap.Error(err))
	}
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func intField(fields map[string]interface{}, name string) int {
	switch v := fields[name].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	}
	return 0
}
