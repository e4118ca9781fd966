// Package data implements the document persistence layer.
package data

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/deepsearch-labs/deepquery/internal/document/types"
	"github.com/deepsearch-labs/deepquery/internal/pkg/database"
)

// DocumentRepo persists document metadata.
type DocumentRepo interface {
	Create(ctx context.Context, doc *types.Document) error
	Update(ctx context.Context, doc *types.Document) error
	GetByID(ctx context.Context, id string) (*types.Document, error)
	ListBySession(ctx context.Context, sessionID string) ([]*types.Document, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type documentRepo struct {
	db *database.DB
}

// NewDocumentRepo creates a document repository.
func NewDocumentRepo(db *database.DB) DocumentRepo {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *types.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *documentRepo) Update(ctx context.Context, doc *types.Document) error {
	if err := r.db.WithContext(ctx).Save(doc).Error; err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*types.Document, error) {
	var doc types.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) ListBySession(ctx context.Context, sessionID string) ([]*types.Document, error) {
	var docs []*types.Document
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (r *documentRepo) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&types.Document{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (r *documentRepo) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&types.Document{}).Error; err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
