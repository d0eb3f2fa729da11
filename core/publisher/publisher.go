package publisher

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/mongodb-partners/doc-embedding-stream/core/bus"
	"github.com/mongodb-partners/doc-embedding-stream/core/codec"
	"github.com/mongodb-partners/doc-embedding-stream/core/data"
)

// Publisher binds the codec to the producer side of the bus. The target
// schema identifier is resolved once at construction, so the hot path never
// touches the registry.
type Publisher struct {
	bus      bus.Publisher
	codec    *codec.AvroCodec
	schemaID int
}

func New(busPublisher bus.Publisher, avroCodec *codec.AvroCodec, schemaID int) *Publisher {
	return &Publisher{
		bus:      busPublisher,
		codec:    avroCodec,
		schemaID: schemaID,
	}
}

// Publish encodes one chunk record and appends it to the bus, keyed by the
// source document so every chunk of one document lands in the same partition
// in publish order. It returns after the broker acknowledges the append.
func (p *Publisher) Publish(ctx context.Context, record data.ChunkRecord) error {
	logger := ctx.Value("logger").(*slog.Logger)

	encoded, err := p.codec.Encode(record, p.schemaID)
	if err != nil {
		logger.Error("could not encode chunk",
			slog.String("component", "publisher"),
			slog.String("documentID", record.DocumentID),
			slog.Int("chunkIndex", record.Index),
			slog.String("error", err.Error()))
		return err
	}

	headers := map[string]string{
		bus.HeaderDocumentID: record.DocumentID,
		bus.HeaderChunkIndex: strconv.Itoa(record.Index),
	}
	if err := p.bus.Publish(ctx, record.DocumentID, encoded, headers); err != nil {
		logger.Error("could not publish chunk",
			slog.String("component", "publisher"),
			slog.String("documentID", record.DocumentID),
			slog.Int("chunkIndex", record.Index),
			slog.String("error", err.Error()))
		return err
	}

	return nil
}
