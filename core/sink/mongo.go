package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
	"github.com/mongodb-partners/doc-embedding-stream/core/data"
)

type mongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	policy     RetryPolicy
	timeout    time.Duration
}

// NewMongoSink builds a store handle over one mongo client. The client dials
// lazily, so a store that is down at startup surfaces as transient persist
// failures with retry rather than aborting the process.
func NewMongoSink(ctx context.Context, mongoConfig config.MongoConfig, policy RetryPolicy) (Sink, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoConfig.URI))
	if err != nil {
		logger.Error("could not create mongo client",
			slog.String("component", "sink"),
			slog.String("error", err.Error()))
		return nil, err
	}

	return &mongoSink{
		client:     client,
		collection: client.Database(mongoConfig.Database).Collection(mongoConfig.Collection),
		policy:     policy,
		timeout:    10 * time.Second,
	}, nil
}

// Persist upserts the chunk keyed by document id and chunk index, retrying
// transient failures under the sink's policy. Attempts already in flight when
// ctx is cancelled finish on their own timeout; no new attempt starts after
// cancellation.
func (s *mongoSink) Persist(ctx context.Context, record data.ChunkRecord) error {
	logger := ctx.Value("logger").(*slog.Logger)

	attemptParent := context.WithoutCancel(ctx)
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(attemptParent, s.timeout)
		defer cancel()

		err := s.upsert(attemptCtx, record)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			logger.Warn("transient store failure",
				slog.String("component", "sink"),
				slog.String("chunk", record.StorageKey()),
				slog.String("error", err.Error()))
			return err
		}
		return Permanent(err)
	}

	err := s.policy.Execute(ctx, operation)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case ctx.Err() != nil && isTransient(err):
		// shutdown interrupted the retry loop, the budget was not exhausted
		return ctx.Err()
	case isTransient(err):
		return fmt.Errorf("%w: %s: %v", ErrPersistenceFailed, record.StorageKey(), err)
	default:
		// non-transient rejection, surfaced without the retry wrapper
		return fmt.Errorf("storing chunk %s: %w", record.StorageKey(), err)
	}
}

func (s *mongoSink) upsert(ctx context.Context, record data.ChunkRecord) error {
	_, err := s.collection.UpdateOne(ctx, upsertFilter(record), upsertUpdate(record), options.Update().SetUpsert(true))
	return err
}

// upsertFilter identifies a chunk by document id and chunk index, so
// redelivered messages land on the same stored document.
func upsertFilter(record data.ChunkRecord) bson.M {
	return bson.M{
		"document_id": record.DocumentID,
		"chunk_index": record.Index,
	}
}

// upsertUpdate replaces the chunk's fields wholesale, latest write wins.
func upsertUpdate(record data.ChunkRecord) bson.M {
	document := bson.M{
		"document_id": record.DocumentID,
		"chunk_index": record.Index,
		"chunk_key":   record.StorageKey(),
		"updated_at":  time.Now().UTC(),
	}
	if record.Content != nil {
		document["content"] = *record.Content
	}
	if record.Embeddings != nil {
		document["embeddings"] = record.Embeddings
	}
	return bson.M{"$set": document}
}

func (s *mongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func isTransient(err error) bool {
	return mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err) ||
		errors.Is(err, context.DeadlineExceeded)
}
