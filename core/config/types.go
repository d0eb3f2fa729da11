package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Storage interface{}

type Bus interface{}

type Registry interface{}

type Parser interface{}

type Store interface{}

type Config struct {
	Storage     RawStorage        `yaml:"storage"`
	Bus         RawBus            `yaml:"bus"`
	Registry    RawRegistry       `yaml:"registry"`
	Parser      RawParser         `yaml:"parser"`
	Store       RawStore          `yaml:"store"`
	Application ApplicationConfig `yaml:"application"`
}

type RawStorage struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
	Value  Storage   `yaml:"value"`
}

type RawBus struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
	Value  Bus       `yaml:"value"`
}

type RawRegistry struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
	Value  Registry  `yaml:"value"`
}

type RawParser struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
	Value  Parser    `yaml:"value"`
}

type RawStore struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
	Value  Store     `yaml:"value"`
}

type MinioConfig struct {
	Host      string `yaml:"host"`
	Port      string `yaml:"port"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"groupID"`
}

type ConfluentRegistryConfig struct {
	URL       string `yaml:"url"`
	Subject   string `yaml:"subject"`
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
}

type DocparseConfig struct {
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type MongoConfig struct {
	URI                  string `yaml:"uri"`
	Database             string `yaml:"database"`
	Collection           string `yaml:"collection"`
	DeadLetterCollection string `yaml:"deadLetterCollection"`
}

type ApplicationConfig struct {
	ProducerRoutines     int    `yaml:"producerRoutines"`
	ConsumerWorkers      int    `yaml:"consumerWorkers"`
	ObjectPrefix         string `yaml:"objectPrefix"`
	ObjectSuffix         string `yaml:"objectSuffix"`
	ChunkCharBudget      int    `yaml:"chunkCharBudget"`
	PersistAttempts      int    `yaml:"persistAttempts"`
	PersistBackoffMillis int    `yaml:"persistBackoffMillis"`
	PersistTimeoutSecs   int    `yaml:"persistTimeoutSeconds"`
}

func (rs *RawStorage) UnmarshalYAML(value *yaml.Node) error {
	var tmp struct {
		Type   string    `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	rs.Type = tmp.Type
	rs.Config = tmp.Config

	switch tmp.Type {
	case "minio":
		var cfg MinioConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding minio config: %w", err)
		}
		rs.Value = cfg
	default:
		return fmt.Errorf("unsupported storage type: %s", tmp.Type)
	}

	return nil
}

func (rb *RawBus) UnmarshalYAML(value *yaml.Node) error {
	var tmp struct {
		Type   string    `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	rb.Type = tmp.Type
	rb.Config = tmp.Config

	switch tmp.Type {
	case "kafka":
		var cfg KafkaConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding kafka config: %w", err)
		}
		rb.Value = cfg
	default:
		return fmt.Errorf("unsupported bus type: %s", tmp.Type)
	}

	return nil
}

func (rr *RawRegistry) UnmarshalYAML(value *yaml.Node) error {
	var tmp struct {
		Type   string    `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	rr.Type = tmp.Type
	rr.Config = tmp.Config

	switch tmp.Type {
	case "confluent":
		var cfg ConfluentRegistryConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding confluent registry config: %w", err)
		}
		rr.Value = cfg
	default:
		return fmt.Errorf("unsupported registry type: %s", tmp.Type)
	}

	return nil
}

func (rp *RawParser) UnmarshalYAML(value *yaml.Node) error {
	var tmp struct {
		Type   string    `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	rp.Type = tmp.Type
	rp.Config = tmp.Config

	switch tmp.Type {
	case "docparse":
		var cfg DocparseConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding docparse config: %w", err)
		}
		rp.Value = cfg
	default:
		return fmt.Errorf("unsupported parser type: %s", tmp.Type)
	}

	return nil
}

func (rs *RawStore) UnmarshalYAML(value *yaml.Node) error {
	var tmp struct {
		Type   string    `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	rs.Type = tmp.Type
	rs.Config = tmp.Config

	switch tmp.Type {
	case "mongo":
		var cfg MongoConfig
		if err := tmp.Config.Decode(&cfg); err != nil {
			return fmt.Errorf("error decoding mongo config: %w", err)
		}
		rs.Value = cfg
	default:
		return fmt.Errorf("unsupported store type: %s", tmp.Type)
	}

	return nil
}

// NewConfig reads the YAML configuration file at path and fills in defaults
// for the application section.
func NewConfig(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	if cfg.Application.ProducerRoutines <= 0 {
		cfg.Application.ProducerRoutines = 4
	}
	if cfg.Application.ConsumerWorkers <= 0 {
		cfg.Application.ConsumerWorkers = 4
	}
	if cfg.Application.PersistAttempts <= 0 {
		cfg.Application.PersistAttempts = 5
	}
	if cfg.Application.PersistBackoffMillis <= 0 {
		cfg.Application.PersistBackoffMillis = 500
	}
	if cfg.Application.PersistTimeoutSecs <= 0 {
		cfg.Application.PersistTimeoutSecs = 10
	}

	return &cfg, nil
}
