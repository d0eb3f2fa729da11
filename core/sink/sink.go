package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
	"github.com/mongodb-partners/doc-embedding-stream/core/data"
)

// ErrPersistenceFailed reports a document store write that exhausted its
// retry budget on transient failures.
var ErrPersistenceFailed = errors.New("document store write exhausted retries")

// Sink writes decoded chunk records into the document store. Persist is
// idempotent: writing the same logical chunk twice converges to one stored
// document keyed by document id and chunk index.
type Sink interface {
	Persist(ctx context.Context, record data.ChunkRecord) error
	Close(ctx context.Context) error
}

// NewSink builds a fresh store handle. Every call returns an independent
// handle so callers can give each worker its own.
func NewSink(ctx context.Context, storeConfig config.RawStore, policy RetryPolicy) (Sink, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	switch storeConfig.Type {
	case "mongo":
		mongoConfig, ok := storeConfig.Value.(config.MongoConfig)
		if !ok {
			logger.Error("could not cast mongo config",
				slog.String("component", "sink"),
				slog.String("type", storeConfig.Type))
			return nil, fmt.Errorf("store config is not a mongo config")
		}
		logger.Info("creating a new mongo sink",
			slog.String("component", "sink"),
			slog.String("database", mongoConfig.Database),
			slog.String("collection", mongoConfig.Collection))
		return NewMongoSink(ctx, mongoConfig, policy)
	default:
		logger.Error("could not find store type",
			slog.String("component", "sink"),
			slog.String("type", storeConfig.Type))
		return nil, fmt.Errorf("store type %s is not supported", storeConfig.Type)
	}
}
