package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
storage:
  type: minio
  config:
    host: localhost
    port: "9000"
    accessKey: minio
    secretKey: minio123
    bucket: documents
bus:
  type: kafka
  config:
    brokers:
      - localhost:9092
    topic: doc-chunks
    groupID: chunk-writers
registry:
  type: confluent
  config:
    url: http://localhost:8081
    subject: doc-chunks-value
parser:
  type: docparse
  config:
    endpoint: http://localhost:8001
    timeoutSeconds: 60
store:
  type: mongo
  config:
    uri: mongodb://localhost:27017
    database: documents
    collection: chunks
    deadLetterCollection: dead_letters
application:
  producerRoutines: 2
  consumerWorkers: 3
  objectPrefix: incoming/
  objectSuffix: .pdf
  persistAttempts: 7
`

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	minioConfig, ok := cfg.Storage.Value.(MinioConfig)
	require.True(t, ok)
	assert.Equal(t, "documents", minioConfig.Bucket)

	kafkaConfig, ok := cfg.Bus.Value.(KafkaConfig)
	require.True(t, ok)
	assert.Equal(t, []string{"localhost:9092"}, kafkaConfig.Brokers)
	assert.Equal(t, "doc-chunks", kafkaConfig.Topic)
	assert.Equal(t, "chunk-writers", kafkaConfig.GroupID)

	registryConfig, ok := cfg.Registry.Value.(ConfluentRegistryConfig)
	require.True(t, ok)
	assert.Equal(t, "doc-chunks-value", registryConfig.Subject)

	parserConfig, ok := cfg.Parser.Value.(DocparseConfig)
	require.True(t, ok)
	assert.Equal(t, 60, parserConfig.TimeoutSeconds)

	mongoConfig, ok := cfg.Store.Value.(MongoConfig)
	require.True(t, ok)
	assert.Equal(t, "chunks", mongoConfig.Collection)
	assert.Equal(t, "dead_letters", mongoConfig.DeadLetterCollection)

	assert.Equal(t, 2, cfg.Application.ProducerRoutines)
	assert.Equal(t, 3, cfg.Application.ConsumerWorkers)
	assert.Equal(t, ".pdf", cfg.Application.ObjectSuffix)
	assert.Equal(t, 7, cfg.Application.PersistAttempts)
}

func TestNewConfigDefaults(t *testing.T) {
	minimal := `
storage:
  type: minio
  config: {}
bus:
  type: kafka
  config: {}
registry:
  type: confluent
  config: {}
parser:
  type: docparse
  config: {}
store:
  type: mongo
  config: {}
`
	cfg, err := NewConfig(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Application.ProducerRoutines)
	assert.Equal(t, 4, cfg.Application.ConsumerWorkers)
	assert.Equal(t, 5, cfg.Application.PersistAttempts)
	assert.Equal(t, 500, cfg.Application.PersistBackoffMillis)
	assert.Equal(t, 10, cfg.Application.PersistTimeoutSecs)
}

func TestNewConfigUnsupportedTypes(t *testing.T) {
	bad := `
storage:
  type: filesystem
  config: {}
`
	_, err := NewConfig(writeConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
