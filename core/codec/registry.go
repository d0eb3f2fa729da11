package codec

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riferrei/srclient"

	"github.com/mongodb-partners/doc-embedding-stream/core/config"
)

// Registry resolves schema definitions in an external schema registry.
// Register and Latest run on the setup path; Fetch serves decode-time cache
// misses.
type Registry interface {
	Register(subject string, definition string) (int, error)
	Latest(subject string) (int, string, error)
	Fetch(schemaID int) (string, error)
}

func NewRegistry(ctx context.Context, registryConfig config.RawRegistry) (Registry, error) {
	logger := ctx.Value("logger").(*slog.Logger)

	switch registryConfig.Type {
	case "confluent":
		confluentConfig, ok := registryConfig.Value.(config.ConfluentRegistryConfig)
		if !ok {
			logger.Error("could not cast confluent registry config",
				slog.String("component", "codec"),
				slog.String("type", registryConfig.Type))
			return nil, fmt.Errorf("registry config is not a confluent config")
		}
		logger.Info("creating a new schema registry client",
			slog.String("component", "codec"),
			slog.String("url", confluentConfig.URL))
		return NewConfluentRegistry(ctx, confluentConfig), nil
	default:
		logger.Error("could not find registry type",
			slog.String("component", "codec"),
			slog.String("type", registryConfig.Type))
		return nil, fmt.Errorf("registry type %s is not supported", registryConfig.Type)
	}
}

type confluentRegistry struct {
	client srclient.ISchemaRegistryClient
}

func NewConfluentRegistry(ctx context.Context, registryConfig config.ConfluentRegistryConfig) Registry {
	client := srclient.CreateSchemaRegistryClient(registryConfig.URL)
	if registryConfig.APIKey != "" {
		client.SetCredentials(registryConfig.APIKey, registryConfig.APISecret)
	}
	return &confluentRegistry{client: client}
}

func (r *confluentRegistry) Register(subject string, definition string) (int, error) {
	schema, err := r.client.CreateSchema(subject, definition, srclient.Avro)
	if err != nil {
		return 0, fmt.Errorf("error registering schema under subject %s: %w", subject, err)
	}
	return schema.ID(), nil
}

func (r *confluentRegistry) Latest(subject string) (int, string, error) {
	schema, err := r.client.GetLatestSchema(subject)
	if err != nil {
		return 0, "", fmt.Errorf("error fetching latest schema for subject %s: %w", subject, err)
	}
	return schema.ID(), schema.Schema(), nil
}

func (r *confluentRegistry) Fetch(schemaID int) (string, error) {
	schema, err := r.client.GetSchema(schemaID)
	if err != nil {
		return "", err
	}
	return schema.Schema(), nil
}
