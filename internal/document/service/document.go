// Package service exposes document upload and management over HTTP.
package service

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deepsearch-labs/deepquery/internal/document/biz"
	"github.com/deepsearch-labs/deepquery/internal/document/types"
	"github.com/deepsearch-labs/deepquery/internal/pkg/response"
)

// DocumentService handles HTTP requests for document operations.
type DocumentService struct {
	useCase *biz.UseCase
}

// NewDocumentService creates a new document service.
func NewDocumentService(useCase *biz.UseCase) *DocumentService {
	return &DocumentService{useCase: useCase}
}

// RegisterRoutes registers document routes.
func (s *DocumentService) RegisterRoutes(r *gin.RouterGroup) {
	docs := r.Group("/documents")
	{
		docs.POST("", s.Upload)
		docs.GET("", s.List)
		docs.DELETE("/:id", s.Delete)
	}
}

// Upload ingests one multipart file for a session.
func (s *DocumentService) Upload(c *gin.Context) {
	sessionID := c.PostForm("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to open uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to read uploaded file")
		return
	}

	doc, err := s.useCase.Upload(c.Request.Context(), &biz.UploadInput{
		SessionID:   sessionID,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Data:        data,
	})
	switch {
	case errors.Is(err, types.ErrUnsupportedFileType):
		response.BadRequest(c, "unsupported file type, expected pdf, markdown or text")
		return
	case errors.Is(err, types.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "file exceeds maximum size")
		return
	case err != nil:
		response.HandleError(c, err)
		return
	}

	response.Created(c, doc)
}

// List returns a session's documents.
func (s *DocumentService) List(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}

	docs, err := s.useCase.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	if docs == nil {
		docs = []*types.Document{}
	}
	response.Success(c, docs)
}

// Delete removes a document and its indexed chunks.
func (s *DocumentService) Delete(c *gin.Context) {
	id := c.Param("id")

	err := s.useCase.Delete(c.Request.Context(), id)
	if errors.Is(err, types.ErrDocumentNotFound) {
		response.NotFound(c, "document not found")
		return
	}
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}
