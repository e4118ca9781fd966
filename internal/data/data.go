// Package data constructs and tears down the service's shared clients.
package data

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/conf"
	doctypes "github.com/deepsearch-labs/deepquery/internal/document/types"
	"github.com/deepsearch-labs/deepquery/internal/pkg/database"
	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
	"github.com/deepsearch-labs/deepquery/internal/pkg/milvus"
	"github.com/deepsearch-labs/deepquery/internal/pkg/minio"
	"github.com/deepsearch-labs/deepquery/internal/pkg/redis"
)

// Data bundles every external client the services share.
type Data struct {
	DB     *database.DB
	Redis  *redis.Client
	MinIO  *minio.Client
	Milvus *milvus.Client
}

// NewData connects all backing stores, migrates the schema and ensures the
// vector collection exists. The returned cleanup closes every connection.
func NewData(ctx context.Context, config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&doctypes.Document{}); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisClient, err := redis.New(&config.Redis, log)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to init redis: %w", err)
	}

	minioClient, err := minio.New(ctx, &config.MinIO, log)
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, nil, fmt.Errorf("failed to init minio: %w", err)
	}

	milvusClient, err := milvus.New(ctx, &config.Milvus, log)
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, nil, fmt.Errorf("failed to init milvus: %w", err)
	}

	collection := config.Documents.Collection
	if collection == "" {
		collection = "document_chunks"
	}
	dimension := config.LLM.EmbeddingDimension
	if dimension == 0 {
		dimension = 1536
	}
	if err := milvusClient.EnsureCollection(ctx, collection, dimension); err != nil {
		milvusClient.Close(ctx)
		redisClient.Close()
		db.Close()
		return nil, nil, fmt.Errorf("failed to ensure vector collection: %w", err)
	}

	d := &Data{
		DB:     db,
		Redis:  redisClient,
		MinIO:  minioClient,
		Milvus: milvusClient,
	}

	cleanup := func() {
		log.Info("cleaning up data resources")
		if err := milvusClient.Close(context.Background()); err != nil {
			log.Warn("failed to close milvus", zap.Error(err))
		}
		if err := redisClient.Close(); err != nil {
			log.Warn("failed to close redis", zap.Error(err))
		}
		if err := db.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
	return d, cleanup, nil
}
