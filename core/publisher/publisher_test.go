package publisher

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongodb-partners/doc-embedding-stream/core/bus"
	"github.com/mongodb-partners/doc-embedding-stream/core/codec"
	"github.com/mongodb-partners/doc-embedding-stream/core/data"
)

type fakeRegistry struct{}

func (r fakeRegistry) Register(subject string, definition string) (int, error) { return 7, nil }

func (r fakeRegistry) Latest(subject string) (int, string, error) {
	return 7, codec.ChunkSchema, nil
}

func (r fakeRegistry) Fetch(schemaID int) (string, error) {
	if schemaID != 7 {
		return "", fmt.Errorf("schema %d not found", schemaID)
	}
	return codec.ChunkSchema, nil
}

type published struct {
	key     string
	value   []byte
	headers map[string]string
}

type fakeBusPublisher struct {
	messages []published
	fail     error
}

func (p *fakeBusPublisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	if p.fail != nil {
		return p.fail
	}
	p.messages = append(p.messages, published{key: key, value: value, headers: headers})
	return nil
}

func (p *fakeBusPublisher) Close() error { return nil }

func testContext() context.Context {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return context.WithValue(context.Background(), "logger", logger)
}

func TestPublishKeyAndHeaders(t *testing.T) {
	busPublisher := &fakeBusPublisher{}
	chunkPublisher := New(busPublisher, codec.NewAvroCodec(fakeRegistry{}), 7)

	content := "page text"
	record := data.ChunkRecord{DocumentID: "bucket/report.pdf", Index: 3, Content: &content}
	require.NoError(t, chunkPublisher.Publish(testContext(), record))

	require.Len(t, busPublisher.messages, 1)
	message := busPublisher.messages[0]
	assert.Equal(t, "bucket/report.pdf", message.key)
	assert.Equal(t, "bucket/report.pdf", message.headers[bus.HeaderDocumentID])
	assert.Equal(t, "3", message.headers[bus.HeaderChunkIndex])

	// framed with the configured target schema id
	require.GreaterOrEqual(t, len(message.value), 5)
	assert.Equal(t, byte(0x00), message.value[0])
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32(message.value[1:5]))
}

func TestPublishBusFailureSurfaces(t *testing.T) {
	failure := fmt.Errorf("%w: broker gone", bus.ErrPublishFailed)
	busPublisher := &fakeBusPublisher{fail: failure}
	chunkPublisher := New(busPublisher, codec.NewAvroCodec(fakeRegistry{}), 7)

	content := "x"
	err := chunkPublisher.Publish(testContext(), data.ChunkRecord{DocumentID: "d", Index: 0, Content: &content})
	require.Error(t, err)
	assert.True(t, errors.Is(err, bus.ErrPublishFailed))
}

func TestPublishEncodeFailureSurfaces(t *testing.T) {
	busPublisher := &fakeBusPublisher{}
	chunkPublisher := New(busPublisher, codec.NewAvroCodec(fakeRegistry{}), 999)

	err := chunkPublisher.Publish(testContext(), data.ChunkRecord{DocumentID: "d", Index: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrUnknownSchema))
	assert.Empty(t, busPublisher.messages)
}
