package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
)

// ErrPublishFailed reports a message the broker did not acknowledge after the
// client's own retry budget was spent.
var ErrPublishFailed = errors.New("publish not acknowledged by the bus")

// Header names carried on every chunk message for traceability.
const (
	HeaderDocumentID = "document-id"
	HeaderChunkIndex = "chunk-index"
)

// Message is one raw bus message in flight inside a worker.
type Message interface {
	Key() string
	Value() []byte
	Header(name string) string
	Partition() int
	Offset() int64
}

// Publisher appends encoded chunk messages to the bus topic. Publish returns
// once the broker has acknowledged the append. Messages sharing a key land in
// the same partition, in call order.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
	Close() error
}

// Consumer is a single consumer-group handle. Workers never share one; each
// owns its own so partition ordering and rebalancing stay intact.
type Consumer interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, message Message) error
	Close() error
}

func NewPublisher(ctx context.Context, busConfig config.RawBus) (Publisher, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	switch busConfig.Type {
	case "kafka":
		kafkaConfig, ok := busConfig.Value.(config.KafkaConfig)
		if !ok {
			logger.Error("could not cast kafka config",
				slog.String("component", "bus"),
				slog.String("type", busConfig.Type))
			return nil, fmt.Errorf("bus config is not a kafka config")
		}
		logger.Info("creating a new kafka publisher",
			slog.String("component", "bus"),
			slog.String("topic", kafkaConfig.Topic))
		return NewKafkaPublisher(ctx, kafkaConfig)
	default:
		logger.Error("could not find bus type",
			slog.String("component", "bus"),
			slog.String("type", busConfig.Type))
		return nil, fmt.Errorf("bus type %s is not supported", busConfig.Type)
	}
}

// NewConsumer builds a fresh consumer handle. Every call returns an
// independent handle so callers can give each worker its own.
func NewConsumer(ctx context.Context, busConfig config.RawBus) (Consumer, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	switch busConfig.Type {
	case "kafka":
		kafkaConfig, ok := busConfig.Value.(config.KafkaConfig)
		if !ok {
			logger.Error("could not cast kafka config",
				slog.String("component", "bus"),
				slog.String("type", busConfig.Type))
			return nil, fmt.Errorf("bus config is not a kafka config")
		}
		logger.Info("creating a new kafka consumer",
			slog.String("component", "bus"),
			slog.String("topic", kafkaConfig.Topic),
			slog.String("groupID", kafkaConfig.GroupID))
		return NewKafkaConsumer(ctx, kafkaConfig)
	default:
		logger.Error("could not find bus type",
			slog.String("component", "bus"),
			slog.String("type", busConfig.Type))
		return nil, fmt.Errorf("bus type %s is not supported", busConfig.Type)
	}
}
