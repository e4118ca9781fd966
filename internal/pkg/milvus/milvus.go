// Package milvus wraps the Milvus v2 client for document chunk vectors.
package milvus

import (
	"context"
	"errors"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
)

// Config defines the Milvus connection settings.
type Config struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("milvus address is required")
	}
	return nil
}

// Client wraps the Milvus connection.
type Client struct {
	client *milvusclient.Client
	logger *logger.Logger
}

// New connects to Milvus.
func New(ctx context.Context, cfg *Config, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("milvus config is required")
	}
	if log == nil {
		log = logger.L()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid milvus configuration: %w", err)
	}

	clientCfg := &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	}

	mc, err := milvusclient.New(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	log.Info("milvus connected", zap.String("address", cfg.Address))
	return &Client{client: mc, logger: log}, nil
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("closing milvus connection")
	return c.client.Close(ctx)
}

// EnsureCollection creates, indexes and loads the chunk collection when it
// does not exist yet. The schema matches what the document pipeline inserts:
// auto-id primary key, session and document scalars, chunk text, one vector.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}

	if !exists {
		schema := entity.NewSchema().WithName(name).
			WithField(entity.NewField().WithName("id").
				WithDataType(entity.FieldTypeInt64).
				WithIsPrimaryKey(true).WithIsAutoID(true)).
			WithField(entity.NewField().WithName("session_id").
				WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName("document_id").
				WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName("filename").
				WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
			WithField(entity.NewField().WithName("page_number").
				WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName("content").
				WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192)).
			WithField(entity.NewField().WithName("vector").
				WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dimension)))

		createOpt := milvusclient.NewCreateCollectionOption(name, schema)
		if err := c.client.CreateCollection(ctx, createOpt); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, "vector", idx))
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", name, err)
		}
		if err := task.Await(ctx); err != nil {
			return fmt.Errorf("failed to build index on %s: %w", name, err)
		}
		c.logger.Info("collection created", zap.String("collection", name))
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to await collection load %s: %w", name, err)
	}
	return nil
}

// Insert inserts column data into a collection.
func (c *Client) Insert(ctx context.Context, collection string, cols ...column.Column) (int64, error) {
	result, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection, cols...))
	if err != nil {
		c.logger.Error("milvus insert failed",
			zap.String("collection", collection),
			zap.Error(err))
		return 0, fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return result.InsertCount, nil
}

// Hit is one vector search match with its output fields.
type Hit struct {
	Score  float64
	Fields map[string]interface{}
}

// Search runs a single-vector ANN search with an optional filter expression.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int, filter string, outputFields []string) ([]Hit, error) {
	searchOpt := milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField("vector")
	if filter != "" {
		searchOpt.WithFilter(filter)
	}
	if len(outputFields) > 0 {
		searchOpt.WithOutputFields(outputFields...)
	}

	resultSets, err := c.client.Search(ctx, searchOpt)
	if err != nil {
		c.logger.Error("milvus search failed",
			zap.String("collection", collection),
			zap.Error(err))
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}

	var hits []Hit
	for _, rs := range resultSets {
		for i := 0; i < rs.ResultCount; i++ {
			hit := Hit{
				Score:  float64(rs.Scores[i]),
				Fields: make(map[string]interface{}, len(outputFields)),
			}
			for _, field := range outputFields {
				if col := rs.GetColumn(field); col != nil {
					if val, err := col.Get(i); err == nil {
						hit.Fields[field] = val
					}
				}
			}
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

// Delete removes entities matching the filter expression.
func (c *Client) Delete(ctx context.Context, collection, filter string) error {
	_, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithExpr(filter))
	if err != nil {
		c.logger.Error("milvus delete failed",
			zap.String("collection", collection),
			zap.String("filter", filter),
			zap.Error(err))
		return fmt.Errorf("failed to delete from %s: %w", collection, err)
	}
	return nil
}
