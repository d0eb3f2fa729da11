package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongodb-partners/doc-embedding-stream/core/bus"
	"github.com/mongodb-partners/doc-embedding-stream/core/codec"
	"github.com/mongodb-partners/doc-embedding-stream/core/data"
	"github.com/mongodb-partners/doc-embedding-stream/core/deadletter"
	"github.com/mongodb-partners/doc-embedding-stream/core/sink"
)

type fakeRegistry struct{}

func (r fakeRegistry) Register(subject string, definition string) (int, error) { return 1, nil }

func (r fakeRegistry) Latest(subject string) (int, string, error) { return 1, codec.ChunkSchema, nil }

func (r fakeRegistry) Fetch(schemaID int) (string, error) {
	if schemaID != 1 {
		return "", fmt.Errorf("schema %d not found", schemaID)
	}
	return codec.ChunkSchema, nil
}

type fakeMessage struct {
	key     string
	value   []byte
	headers map[string]string
	offset  int64
}

func (m fakeMessage) Key() string   { return m.key }
func (m fakeMessage) Value() []byte { return m.value }
func (m fakeMessage) Header(name string) string {
	return m.headers[name]
}
func (m fakeMessage) Partition() int { return 0 }
func (m fakeMessage) Offset() int64  { return m.offset }

type fakeConsumer struct {
	messages chan bus.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func (c *fakeConsumer) Fetch(ctx context.Context) (bus.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case message := <-c.messages:
		return message, nil
	}
}

func (c *fakeConsumer) Commit(ctx context.Context, message bus.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, message.Offset())
	return nil
}

func (c *fakeConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConsumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConsumer) committedOffsets() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.committed...)
}

type fakeSink struct {
	mu        sync.Mutex
	persisted []data.ChunkRecord
	fail      error
	block     chan struct{}
	closed    bool
}

func (s *fakeSink) Persist(ctx context.Context, record data.ChunkRecord) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisted = append(s.persisted, record)
	return nil
}

func (s *fakeSink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSink) records() []data.ChunkRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]data.ChunkRecord(nil), s.persisted...)
}

type fakeRecorder struct {
	mu      sync.Mutex
	letters []deadletter.DeadLetter
}

func (r *fakeRecorder) Record(ctx context.Context, letter deadletter.DeadLetter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.letters = append(r.letters, letter)
	return nil
}

func (r *fakeRecorder) Close(ctx context.Context) error { return nil }

func (r *fakeRecorder) recorded() []deadletter.DeadLetter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]deadletter.DeadLetter(nil), r.letters...)
}

func testContext(t *testing.T) (context.Context, context.CancelFunc) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.WithValue(context.Background(), "logger", logger)
	return context.WithCancel(ctx)
}

func newTestWorker(t *testing.T, consumer *fakeConsumer, workerSink *fakeSink, recorder *fakeRecorder) *worker {
	ctx, cancel := testContext(t)
	return &worker{
		consumer:   consumer,
		codec:      codec.NewAvroCodec(fakeRegistry{}),
		sink:       workerSink,
		deadLetter: recorder,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func encodeChunk(t *testing.T, content string) []byte {
	encoded, err := codec.NewAvroCodec(fakeRegistry{}).Encode(data.ChunkRecord{Content: &content}, 1)
	require.NoError(t, err)
	return encoded
}

func chunkMessage(t *testing.T, documentID string, index int, content string, offset int64) fakeMessage {
	return fakeMessage{
		key:   documentID,
		value: encodeChunk(t, content),
		headers: map[string]string{
			bus.HeaderDocumentID: documentID,
			bus.HeaderChunkIndex: strconv.Itoa(index),
		},
		offset: offset,
	}
}

func TestWorkerPersistsInOrder(t *testing.T) {
	consumer := &fakeConsumer{messages: make(chan bus.Message, 3)}
	workerSink := &fakeSink{}
	recorder := &fakeRecorder{}
	w := newTestWorker(t, consumer, workerSink, recorder)

	for i, content := range []string{"a", "b", "c"} {
		consumer.messages <- chunkMessage(t, "docs/report.pdf", i, content, int64(i))
	}

	go w.Start()
	require.Eventually(t, func() bool {
		return len(consumer.committedOffsets()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	w.cancel()

	records := workerSink.records()
	require.Len(t, records, 3)
	for i, record := range records {
		assert.Equal(t, "docs/report.pdf", record.DocumentID)
		assert.Equal(t, i, record.Index)
		require.NotNil(t, record.Content)
	}
	assert.Equal(t, "a", *records[0].Content)
	assert.Equal(t, "b", *records[1].Content)
	assert.Equal(t, "c", *records[2].Content)
	assert.Equal(t, []int64{0, 1, 2}, consumer.committedOffsets())
	assert.Empty(t, recorder.recorded())
}

func TestWorkerParksMalformedMessage(t *testing.T) {
	consumer := &fakeConsumer{}
	workerSink := &fakeSink{}
	recorder := &fakeRecorder{}
	w := newTestWorker(t, consumer, workerSink, recorder)
	defer w.cancel()

	message := fakeMessage{key: "doc", value: []byte{0x00, 0x01}, offset: 9}
	require.NoError(t, w.processMessage(message))

	assert.Empty(t, workerSink.records())
	letters := recorder.recorded()
	require.Len(t, letters, 1)
	assert.Equal(t, "doc", letters[0].Key)
	assert.Equal(t, int64(9), letters[0].Offset)
	assert.Equal(t, []byte{0x00, 0x01}, letters[0].Payload)
	assert.Contains(t, letters[0].Reason, "malformed")
}

func TestWorkerParksUnknownSchema(t *testing.T) {
	consumer := &fakeConsumer{}
	workerSink := &fakeSink{}
	recorder := &fakeRecorder{}
	w := newTestWorker(t, consumer, workerSink, recorder)
	defer w.cancel()

	// schema id 2 is not registered
	message := fakeMessage{key: "doc", value: []byte{0x00, 0x00, 0x00, 0x00, 0x02, 0x00}, offset: 4}
	require.NoError(t, w.processMessage(message))

	assert.Empty(t, workerSink.records())
	letters := recorder.recorded()
	require.Len(t, letters, 1)
	assert.Contains(t, letters[0].Reason, "unknown schema")
}

func TestWorkerParksMissingChunkIndexHeader(t *testing.T) {
	consumer := &fakeConsumer{}
	workerSink := &fakeSink{}
	recorder := &fakeRecorder{}
	w := newTestWorker(t, consumer, workerSink, recorder)
	defer w.cancel()

	// a well formed payload whose index header was dropped in transit would
	// otherwise land on chunk 0 of its document
	message := fakeMessage{
		key:     "docs/report.pdf",
		value:   encodeChunk(t, "x"),
		headers: map[string]string{bus.HeaderDocumentID: "docs/report.pdf"},
		offset:  7,
	}
	require.NoError(t, w.processMessage(message))

	assert.Empty(t, workerSink.records())
	letters := recorder.recorded()
	require.Len(t, letters, 1)
	assert.Equal(t, int64(7), letters[0].Offset)
	assert.Contains(t, letters[0].Reason, "missing chunk index")
}

func TestWorkerParksExhaustedPersistence(t *testing.T) {
	consumer := &fakeConsumer{}
	workerSink := &fakeSink{fail: fmt.Errorf("%w: chunk doc_chunk_0", sink.ErrPersistenceFailed)}
	recorder := &fakeRecorder{}
	w := newTestWorker(t, consumer, workerSink, recorder)
	defer w.cancel()

	require.NoError(t, w.processMessage(chunkMessage(t, "doc", 0, "x", 12)))

	letters := recorder.recorded()
	require.Len(t, letters, 1)
	assert.Equal(t, int64(12), letters[0].Offset)
	assert.Contains(t, letters[0].Reason, "exhausted retries")
}

func TestWorkerParksStoreRejection(t *testing.T) {
	consumer := &fakeConsumer{}
	workerSink := &fakeSink{fail: errors.New("document failed validation")}
	recorder := &fakeRecorder{}
	w := newTestWorker(t, consumer, workerSink, recorder)
	defer w.cancel()

	require.NoError(t, w.processMessage(chunkMessage(t, "doc", 0, "x", 3)))
	require.Len(t, recorder.recorded(), 1)
}

func TestWorkerShutdownMidPersistLeavesOffsetUncommitted(t *testing.T) {
	consumer := &fakeConsumer{messages: make(chan bus.Message, 1)}
	workerSink := &fakeSink{block: make(chan struct{})}
	recorder := &fakeRecorder{}
	w := newTestWorker(t, consumer, workerSink, recorder)

	consumer.messages <- chunkMessage(t, "doc", 0, "x", 0)

	done := make(chan struct{})
	go func() {
		w.Start()
		close(done)
	}()

	// let the worker reach the blocked persist, then signal shutdown
	time.Sleep(50 * time.Millisecond)
	w.cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.Empty(t, consumer.committedOffsets())
	assert.Empty(t, recorder.recorded())
	assert.Empty(t, workerSink.records())
}
