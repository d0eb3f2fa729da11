package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
)

// Storage is the object store the producer reads raw documents from. The
// core only ever lists keys and downloads objects.
type Storage interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

func NewStorage(ctx context.Context, storageConfig config.RawStorage) (Storage, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	switch storageConfig.Type {
	case "minio":
		minioConfig, ok := storageConfig.Value.(config.MinioConfig)
		if !ok {
			logger.Error("could not cast minio config",
				slog.String("component", "storage"),
				slog.String("type", storageConfig.Type))
			return nil, errors.New("storage config is not a minio config")
		}
		logger.Info("creating minio storage",
			slog.String("component", "storage"),
			slog.String("bucket", minioConfig.Bucket))
		newMinioConnector, err := NewMinioConnector(ctx, minioConfig)
		if err != nil {
			return nil, err
		}
		return newMinioConnector, nil
	default:
		logger.Error("could not find storage type",
			slog.String("component", "storage"),
			slog.String("type", storageConfig.Type))
		return nil, errors.New("could not find storage type")
	}
}
