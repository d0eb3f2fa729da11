package deadletter

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
)

type mongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoRecorder(ctx context.Context, mongoConfig config.MongoConfig) (Recorder, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoConfig.URI))
	if err != nil {
		logger.Error("could not create mongo client",
			slog.String("component", "deadletter"),
			slog.String("error", err.Error()))
		return nil, err
	}

	collectionName := mongoConfig.DeadLetterCollection
	if collectionName == "" {
		collectionName = "dead_letters"
	}

	return &mongoRecorder{
		client:     client,
		collection: client.Database(mongoConfig.Database).Collection(collectionName),
		timeout:    10 * time.Second,
	}, nil
}

func (r *mongoRecorder) Record(ctx context.Context, letter DeadLetter) error {
	logger := ctx.Value("logger").(*slog.Logger)

	insertCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.collection.InsertOne(insertCtx, bson.M{
		"_id":         letter.ID,
		"key":         letter.Key,
		"partition":   letter.Partition,
		"offset":      letter.Offset,
		"payload":     letter.Payload,
		"reason":      letter.Reason,
		"recorded_at": letter.RecordedAt,
	})
	if err != nil {
		logger.Error("could not record dead letter",
			slog.String("component", "deadletter"),
			slog.String("key", letter.Key),
			slog.Int64("offset", letter.Offset),
			slog.String("error", err.Error()))
		return err
	}

	return nil
}

func (r *mongoRecorder) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
