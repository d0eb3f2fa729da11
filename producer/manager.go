package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/mongodb-partners/doc-embedding-stream/core/bus"
	"github.com/mongodb-partners/doc-embedding-stream/core/chunker"
	"github.com/mongodb-partners/doc-embedding-stream/core/codec"
	"github.com/mongodb-partners/doc-embedding-stream/core/config"
	"github.com/mongodb-partners/doc-embedding-stream/core/parser"
	"github.com/mongodb-partners/doc-embedding-stream/core/publisher"
	"github.com/mongodb-partners/doc-embedding-stream/core/storage"
)

type ProducerManager interface {
	Run(ctx context.Context) error
}

type producerManager struct {
	storage    storage.Storage
	parser     parser.Parser
	publisher  *publisher.Publisher
	busHandle  bus.Publisher
	prefix     string
	suffix     string
	routines   int
	charBudget int
}

func NewProducerManager(ctx context.Context, appConfig *config.Config) (ProducerManager, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	logger.Info("creating a new producer manager", slog.String("component", "producer"))
	newStorage, err := storage.NewStorage(ctx, appConfig.Storage)
	if err != nil {
		return nil, err
	}

	newParser, err := parser.NewParser(ctx, appConfig.Parser)
	if err != nil {
		return nil, err
	}

	// registry unreachable here aborts the process
	registry, err := codec.NewRegistry(ctx, appConfig.Registry)
	if err != nil {
		return nil, err
	}
	registryConfig, _ := appConfig.Registry.Value.(config.ConfluentRegistryConfig)
	schemaID, err := registry.Register(registryConfig.Subject, codec.ChunkSchema)
	if err != nil {
		logger.Error("could not register chunk schema",
			slog.String("component", "producer"),
			slog.String("subject", registryConfig.Subject),
			slog.String("error", err.Error()))
		return nil, err
	}
	logger.Info("registered chunk schema",
		slog.String("component", "producer"),
		slog.String("subject", registryConfig.Subject),
		slog.Int("schemaID", schemaID))

	// bus unreachable here aborts the process
	busPublisher, err := bus.NewPublisher(ctx, appConfig.Bus)
	if err != nil {
		return nil, err
	}

	return producerManager{
		storage:    newStorage,
		parser:     newParser,
		publisher:  publisher.New(busPublisher, codec.NewAvroCodec(registry), schemaID),
		busHandle:  busPublisher,
		prefix:     appConfig.Application.ObjectPrefix,
		suffix:     appConfig.Application.ObjectSuffix,
		routines:   appConfig.Application.ProducerRoutines,
		charBudget: appConfig.Application.ChunkCharBudget,
	}, nil
}

func (m producerManager) Run(ctx context.Context) error {
	logger := ctx.Value("logger").(*slog.Logger)
	defer m.busHandle.Close()

	keys, err := m.storage.List(ctx, m.prefix)
	if err != nil {
		return err
	}
	if m.suffix != "" {
		filtered := keys[:0]
		for _, key := range keys {
			if strings.HasSuffix(key, m.suffix) {
				filtered = append(filtered, key)
			}
		}
		keys = filtered
	}
	logger.Info("listed source documents",
		slog.String("component", "producer"),
		slog.String("prefix", m.prefix),
		slog.Int("count", len(keys)))

	// batching the documents into different goroutines; chunks of one
	// document always stay inside one routine so their order holds
	var wg sync.WaitGroup
	chunkSize := (len(keys) + m.routines - 1) / m.routines // ceil division
	for i := 0; i < m.routines; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		if start >= len(keys) {
			break // no more documents
		}
		batch := keys[start:end]

		wg.Add(1)
		go func(batch []string) {
			defer wg.Done()
			for _, key := range batch {
				if ctx.Err() != nil {
					return
				}
				m.ingest(ctx, key)
			}
		}(batch)
	}
	wg.Wait()

	return nil
}

// ingest moves one document through download, parse, chunk and publish. A
// parse failure skips the document; a publish failure abandons the remainder
// of the document.
func (m producerManager) ingest(ctx context.Context, key string) {
	logger := ctx.Value("logger").(*slog.Logger)

	file, err := m.storage.Download(ctx, key)
	if err != nil {
		logger.Error("could not download document, skipping",
			slog.String("component", "producer"),
			slog.String("documentID", key))
		return
	}

	document, err := m.parser.Parse(ctx, key, file)
	if err != nil {
		logger.Error("could not parse document, skipping",
			slog.String("component", "producer"),
			slog.String("documentID", key),
			slog.String("error", err.Error()))
		return
	}

	expected := chunker.Count(document, m.charBudget)
	logger.Info("parsed document",
		slog.String("component", "producer"),
		slog.String("documentID", key),
		slog.Int("pages", len(document.Pages)),
		slog.Int("expectedChunks", expected))

	published := 0
	for record := range chunker.Chunks(document, m.charBudget) {
		if err := m.publisher.Publish(ctx, record); err != nil {
			logger.Error("abandoning document after failed publish",
				slog.String("component", "producer"),
				slog.String("documentID", key),
				slog.Int("chunkIndex", record.Index),
				slog.String("error", err.Error()))
			return
		}
		published++
	}

	logger.Info("published all chunks for document",
		slog.String("component", "producer"),
		slog.String("documentID", key),
		slog.Int("chunks", published))
}
