package webui

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mwestman/ddbgrid/table"
)

// Config is the YAML configuration for the demo server.
type Config struct {
	Table TableConfig `yaml:"table"`
	AWS   AWSConfig   `yaml:"aws"`
	Local LocalConfig `yaml:"local"`
}

// TableConfig names the table and its key column. The editable grid
// supports simple (partition-only) primary keys; the key column doubles
// as the grid's required identifier column.
type TableConfig struct {
	Name         string    `yaml:"name"`
	PartitionKey KeyConfig `yaml:"partitionKey"`
}

// KeyConfig is a key column definition.
type KeyConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "S", "N", or "B"; defaults to "S"
}

// AWSConfig configures the real DynamoDB client.
type AWSConfig struct {
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	RoleARN  string `yaml:"roleArn,omitempty"`
}

// LocalConfig selects the badger-backed local store instead of AWS.
type LocalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // empty for in-memory
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Table.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if c.Table.PartitionKey.Name == "" {
		return fmt.Errorf("table partition key name is required")
	}
	if c.Table.PartitionKey.Kind == "" {
		c.Table.PartitionKey.Kind = string(table.KeyKindS)
	}
	switch table.KeyKind(c.Table.PartitionKey.Kind) {
	case table.KeyKindS, table.KeyKindN, table.KeyKindB:
	default:
		return fmt.Errorf("unsupported partition key kind %q", c.Table.PartitionKey.Kind)
	}
	return nil
}

// Definition converts the config into a runtime table definition.
func (c *Config) Definition() table.Definition {
	return table.Definition{
		Name: c.Table.Name,
		PartitionKey: table.KeyDef{
			Name: c.Table.PartitionKey.Name,
			Kind: table.KeyKind(c.Table.PartitionKey.Kind),
		},
	}
}
