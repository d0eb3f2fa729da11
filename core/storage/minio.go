package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
)

type minioConnector struct {
	client *minio.Client
	bucket string
}

func NewMinioConnector(ctx context.Context, minioConfig config.MinioConfig) (Storage, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	endpoint := minioConfig.Host + ":" + minioConfig.Port
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(minioConfig.AccessKey, minioConfig.SecretKey, ""),
	})
	if err != nil {
		logger.Error("could not create minio client",
			slog.String("component", "storage"),
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return nil, err
	}

	exists, err := minioClient.BucketExists(ctx, minioConfig.Bucket)
	if err != nil {
		logger.Error("error checking if bucket exists",
			slog.String("component", "storage"),
			slog.String("bucket", minioConfig.Bucket),
			slog.String("error", err.Error()))
		return nil, err
	}
	if !exists {
		logger.Error("bucket does not exist",
			slog.String("component", "storage"),
			slog.String("bucket", minioConfig.Bucket))
		return nil, errors.New("bucket does not exist: " + minioConfig.Bucket)
	}

	return &minioConnector{client: minioClient, bucket: minioConfig.Bucket}, nil
}

func (s *minioConnector) List(ctx context.Context, prefix string) ([]string, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	var keys []string
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			logger.Error("error listing objects",
				slog.String("component", "storage"),
				slog.String("bucket", s.bucket),
				slog.String("prefix", prefix),
				slog.String("error", object.Err.Error()))
			return nil, object.Err
		}
		keys = append(keys, object.Key)
	}

	return keys, nil
}

func (s *minioConnector) Download(ctx context.Context, key string) ([]byte, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	reader, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		logger.Error("error downloading object",
			slog.String("component", "storage"),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, err
	}
	defer reader.Close()

	contents, err := io.ReadAll(reader)
	if err != nil {
		logger.Error("error reading object",
			slog.String("component", "storage"),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, err
	}

	return contents, nil
}
