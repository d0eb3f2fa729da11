package deadletter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
)

// DeadLetter retains a message that could not travel the normal path, with
// its original bytes and the reason it was parked, for manual or later
// handling.
type DeadLetter struct {
	ID         string
	Key        string
	Partition  int
	Offset     int64
	Payload    []byte
	Reason     string
	RecordedAt time.Time
}

// Recorder persists dead letters for operator visibility.
type Recorder interface {
	Record(ctx context.Context, letter DeadLetter) error
	Close(ctx context.Context) error
}

func NewRecorder(ctx context.Context, storeConfig config.RawStore) (Recorder, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	switch storeConfig.Type {
	case "mongo":
		mongoConfig, ok := storeConfig.Value.(config.MongoConfig)
		if !ok {
			logger.Error("could not cast mongo config",
				slog.String("component", "deadletter"),
				slog.String("type", storeConfig.Type))
			return nil, fmt.Errorf("store config is not a mongo config")
		}
		logger.Info("creating a new mongo dead letter recorder",
			slog.String("component", "deadletter"),
			slog.String("database", mongoConfig.Database),
			slog.String("collection", mongoConfig.DeadLetterCollection))
		return NewMongoRecorder(ctx, mongoConfig)
	default:
		logger.Error("could not find store type",
			slog.String("component", "deadletter"),
			slog.String("type", storeConfig.Type))
		return nil, fmt.Errorf("store type %s is not supported", storeConfig.Type)
	}
}
