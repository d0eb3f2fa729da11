package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
)

type kafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

type kafkaConsumer struct {
	reader *kafka.Reader
}

type kafkaMessage struct {
	message kafka.Message
}

// NewKafkaPublisher dials the first broker to verify the bus is reachable,
// then builds a writer that hashes the message key to a partition and waits
// for acknowledgment from all replicas.
func NewKafkaPublisher(ctx context.Context, kafkaConfig config.KafkaConfig) (Publisher, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	if len(kafkaConfig.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", kafkaConfig.Brokers[0])
	if err != nil {
		logger.Error("could not connect to kafka",
			slog.String("component", "bus"),
			slog.String("broker", kafkaConfig.Brokers[0]),
			slog.String("error", err.Error()))
		return nil, err
	}
	conn.Close()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaConfig.Brokers...),
		Topic:        kafkaConfig.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return &kafkaPublisher{writer: writer, topic: kafkaConfig.Topic}, nil
}

func (p *kafkaPublisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	logger := ctx.Value("logger").(*slog.Logger)

	message := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}
	for name, headerValue := range headers {
		message.Headers = append(message.Headers, kafka.Header{Key: name, Value: []byte(headerValue)})
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Error("could not publish message",
			slog.String("component", "bus"),
			slog.String("topic", p.topic),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: topic %s key %s: %v", ErrPublishFailed, p.topic, key, err)
	}

	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewKafkaConsumer builds an independent consumer-group reader. Offsets are
// committed explicitly through Commit, never automatically.
func NewKafkaConsumer(ctx context.Context, kafkaConfig config.KafkaConfig) (Consumer, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	if len(kafkaConfig.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", kafkaConfig.Brokers[0])
	if err != nil {
		logger.Error("could not connect to kafka",
			slog.String("component", "bus"),
			slog.String("broker", kafkaConfig.Brokers[0]),
			slog.String("error", err.Error()))
		return nil, err
	}
	conn.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkaConfig.Brokers,
		GroupID:     kafkaConfig.GroupID,
		Topic:       kafkaConfig.Topic,
		StartOffset: kafka.FirstOffset,
	})

	return &kafkaConsumer{reader: reader}, nil
}

func (c *kafkaConsumer) Fetch(ctx context.Context) (Message, error) {
	message, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	return kafkaMessage{message: message}, nil
}

func (c *kafkaConsumer) Commit(ctx context.Context, message Message) error {
	castKafkaMessage, ok := message.(kafkaMessage)
	if !ok {
		return fmt.Errorf("message is not a kafka message")
	}
	return c.reader.CommitMessages(ctx, castKafkaMessage.message)
}

func (c *kafkaConsumer) Close() error {
	return c.reader.Close()
}

func (m kafkaMessage) Key() string {
	return string(m.message.Key)
}

func (m kafkaMessage) Value() []byte {
	return m.message.Value
}

func (m kafkaMessage) Header(name string) string {
	for _, header := range m.message.Headers {
		if header.Key == name {
			return string(header.Value)
		}
	}
	return ""
}

func (m kafkaMessage) Partition() int {
	return m.message.Partition
}

func (m kafkaMessage) Offset() int64 {
	return m.message.Offset
}
