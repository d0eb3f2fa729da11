package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mongodb-partners/doc-embedding-stream/core/bus"
	"github.com/mongodb-partners/doc-embedding-stream/core/codec"
	"github.com/mongodb-partners/doc-embedding-stream/core/deadletter"
	"github.com/mongodb-partners/doc-embedding-stream/core/sink"
)

// worker pulls raw messages from its own bus handle, decodes them and hands
// them to the sink. Undecodable or unpersistable messages go to the dead
// letter path and their offset is still committed so the partition keeps
// moving.
type worker struct {
	consumer   bus.Consumer
	codec      *codec.AvroCodec
	sink       sink.Sink
	deadLetter deadletter.Recorder
	ctx        context.Context
	cancel     context.CancelFunc
}

func (w *worker) Start() {
	logger := w.ctx.Value("logger").(*slog.Logger)
	logger.Info("starting a new worker to drain the chunk topic", slog.String("component", "consumer"))
	for {
		select {
		case <-w.ctx.Done():
			logger.Info("stopping worker", slog.String("component", "consumer"))
			return
		default:
			// fetch blocks until a message arrives or the worker is told to stop
			message, err := w.consumer.Fetch(w.ctx)
			if err != nil {
				if w.ctx.Err() != nil {
					logger.Info("stopping worker", slog.String("component", "consumer"))
					return
				}
				logger.Error("could not fetch message",
					slog.String("component", "consumer"),
					slog.String("error", err.Error()))
				continue
			}

			// process the message; a shutdown mid-persist leaves the offset
			// uncommitted so another consumer redelivers it
			if err := w.processMessage(message); err != nil {
				continue
			}

			// commit the offset, detached from cancellation so work that
			// finished during shutdown is still acknowledged
			if err := w.consumer.Commit(context.WithoutCancel(w.ctx), message); err != nil {
				logger.Error("could not commit offset",
					slog.String("component", "consumer"),
					slog.String("key", message.Key()),
					slog.Int64("offset", message.Offset()),
					slog.String("error", err.Error()))
				continue
			}
		}
	}
}

// processMessage returns nil when the offset should be committed, whether the
// record was persisted or parked on the dead letter path.
func (w *worker) processMessage(message bus.Message) error {
	logger := w.ctx.Value("logger").(*slog.Logger)

	record, schemaID, err := w.codec.Decode(message.Value())
	if err != nil {
		// contract violations never reach the sink
		w.park(message, err)
		return nil
	}

	record.DocumentID = message.Key()
	// a defaulted index would collide with the document's first chunk, so a
	// missing header is as fatal as an unreadable one
	indexHeader := message.Header(bus.HeaderChunkIndex)
	if indexHeader == "" {
		w.park(message, errors.New("missing chunk index header"))
		return nil
	}
	index, err := strconv.Atoi(indexHeader)
	if err != nil {
		w.park(message, errors.New("unreadable chunk index header: "+indexHeader))
		return nil
	}
	record.Index = index

	err = w.sink.Persist(w.ctx, record)
	switch {
	case err == nil:
		logger.Debug("persisted chunk",
			slog.String("component", "consumer"),
			slog.String("chunk", record.StorageKey()),
			slog.Int("schemaID", schemaID))
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, sink.ErrPersistenceFailed):
		w.park(message, err)
		return nil
	default:
		// the store rejected the document outright
		w.park(message, err)
		return nil
	}
}

// park retains the message on the dead letter path. Recording failures are
// logged and swallowed: liveness of the partition wins over a second copy of
// the diagnostics.
func (w *worker) park(message bus.Message, reason error) {
	logger := w.ctx.Value("logger").(*slog.Logger)

	letter := deadletter.DeadLetter{
		ID:         uuid.New().String(),
		Key:        message.Key(),
		Partition:  message.Partition(),
		Offset:     message.Offset(),
		Payload:    message.Value(),
		Reason:     reason.Error(),
		RecordedAt: time.Now().UTC(),
	}
	if err := w.deadLetter.Record(context.WithoutCancel(w.ctx), letter); err != nil {
		logger.Error("could not record dead letter",
			slog.String("component", "consumer"),
			slog.String("key", message.Key()),
			slog.Int64("offset", message.Offset()),
			slog.String("error", err.Error()))
	}
	logger.Warn("message parked on the dead letter path",
		slog.String("component", "consumer"),
		slog.String("key", message.Key()),
		slog.Int64("offset", message.Offset()),
		slog.String("reason", reason.Error()))
}
