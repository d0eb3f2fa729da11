package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mongodb-partners/doc-embedding-stream/core/bus"
	"github.com/mongodb-partners/doc-embedding-stream/core/codec"
	"github.com/mongodb-partners/doc-embedding-stream/core/config"
	"github.com/mongodb-partners/doc-embedding-stream/core/deadletter"
	"github.com/mongodb-partners/doc-embedding-stream/core/sink"
)

type ConsumerManager interface {
	Run(ctx context.Context) error
}

type consumerManager struct {
	codec       *codec.AvroCodec
	deadLetter  deadletter.Recorder
	workerCount int
	newConsumer func(ctx context.Context) (bus.Consumer, error)
	newSink     func(ctx context.Context) (sink.Sink, error)
}

func NewConsumerManager(ctx context.Context, appConfig *config.Config) (ConsumerManager, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	logger.Info("creating a new consumer manager", slog.String("component", "consumer"))

	// registry unreachable here aborts the process; warming the cache with
	// the latest schema also proves the subject exists
	registry, err := codec.NewRegistry(ctx, appConfig.Registry)
	if err != nil {
		return nil, err
	}
	registryConfig, _ := appConfig.Registry.Value.(config.ConfluentRegistryConfig)
	schemaID, _, err := registry.Latest(registryConfig.Subject)
	if err != nil {
		logger.Error("could not reach schema registry",
			slog.String("component", "consumer"),
			slog.String("subject", registryConfig.Subject),
			slog.String("error", err.Error()))
		return nil, err
	}
	logger.Info("schema registry reachable",
		slog.String("component", "consumer"),
		slog.String("subject", registryConfig.Subject),
		slog.Int("latestSchemaID", schemaID))

	recorder, err := deadletter.NewRecorder(ctx, appConfig.Store)
	if err != nil {
		return nil, err
	}

	retryPolicy := sink.RetryPolicy{
		MaxAttempts:     appConfig.Application.PersistAttempts,
		InitialInterval: time.Duration(appConfig.Application.PersistBackoffMillis) * time.Millisecond,
		MaxInterval:     time.Duration(appConfig.Application.PersistTimeoutSecs) * time.Second,
	}

	return consumerManager{
		codec:       codec.NewAvroCodec(registry),
		deadLetter:  recorder,
		workerCount: appConfig.Application.ConsumerWorkers,
		newConsumer: func(ctx context.Context) (bus.Consumer, error) {
			return bus.NewConsumer(ctx, appConfig.Bus)
		},
		newSink: func(ctx context.Context) (sink.Sink, error) {
			return sink.NewSink(ctx, appConfig.Store, retryPolicy)
		},
	}, nil
}

// Run constructs every worker handle up front, then drains the topic until
// ctx is cancelled. A bus or store handle that cannot be built aborts the
// process: the pool is static, a partial pool never runs.
func (m consumerManager) Run(ctx context.Context) error {
	logger := ctx.Value("logger").(*slog.Logger)

	closeWorkers := func(workers []*worker) {
		closeCtx, cancel := context.WithTimeout(context.WithValue(context.Background(), "logger", logger), 10*time.Second)
		defer cancel()
		for _, w := range workers {
			w.cancel()
			w.consumer.Close()
			w.sink.Close(closeCtx)
		}
	}

	// every worker owns its own bus handle and store handle; the codec and
	// its schema cache are the only shared pieces
	workers := make([]*worker, 0, m.workerCount)
	for i := 0; i < m.workerCount; i++ {
		consumer, err := m.newConsumer(ctx)
		if err != nil {
			logger.Error("could not create bus consumer",
				slog.String("component", "consumer"),
				slog.String("error", err.Error()))
			closeWorkers(workers)
			return err
		}
		workerSink, err := m.newSink(ctx)
		if err != nil {
			logger.Error("could not create sink",
				slog.String("component", "consumer"),
				slog.String("error", err.Error()))
			consumer.Close()
			closeWorkers(workers)
			return err
		}

		wctx, wcancel := context.WithCancel(ctx)
		workers = append(workers, &worker{
			consumer:   consumer,
			codec:      m.codec,
			sink:       workerSink,
			deadLetter: m.deadLetter,
			ctx:        wctx,
			cancel:     wcancel,
		})
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			w.Start()
		}(w)
	}

	// Graceful shutdown
	<-ctx.Done()
	for _, w := range workers {
		w.cancel()
	}
	wg.Wait()

	closeWorkers(workers)
	shutdownCtx, cancel := context.WithTimeout(context.WithValue(context.Background(), "logger", logger), 10*time.Second)
	defer cancel()
	m.deadLetter.Close(shutdownCtx)
	return nil
}
