package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/vk/gridseed/internal/executor"
	"github.com/vk/gridseed/internal/parser"
	"github.com/vk/gridseed/internal/tabular"
	"gopkg.in/yaml.v3"
)

// ProjectFile is the optional configuration file read from the source folder.
const ProjectFile = "gridseed.yaml"

// EnvPrefix prefixes the environment variable of every config key.
const EnvPrefix = "GRIDSEED_"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Source   string `yaml:"-"`
	Out      string `yaml:"out"`
	TempDir  string `yaml:"temp_dir"`
	NodeExt  string `yaml:"node_ext"`
	GroupExt string `yaml:"group_ext"`

	Concurrency int `yaml:"concurrency"`
	BatchSize   int `yaml:"batch_size"`
	ChunkSize   int `yaml:"chunk_size"`
	// PageSize is the export page size. Zero means BatchSize.
	PageSize int    `yaml:"page_size"`
	Format   string `yaml:"format"`

	Export   bool `yaml:"export"`
	Purge    bool `yaml:"purge"`
	KeepTemp bool `yaml:"keep_temp"`
	// Seed is the base random seed. Zero picks a random one per invocation.
	Seed uint64 `yaml:"seed"`

	LogFormat       string `yaml:"log_format"`
	LogLevel        string `yaml:"log_level"`
	Watch           bool   `yaml:"watch"`
	HealthcheckPort int    `yaml:"healthcheck_port"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Source:      ".",
		Out:         "data",
		TempDir:     ".temp",
		NodeExt:     parser.DefaultNodeExt,
		GroupExt:    parser.DefaultGroupExt,
		Concurrency: runtime.NumCPU(),
		BatchSize:   executor.DefaultBatchSize,
		ChunkSize:   executor.DefaultChunkSize,
		Format:      tabular.CSV,
		LogFormat:   "text",
		LogLevel:    "info",
	}
}

// Keys lists the settable config keys in flag form.
var Keys = []string{
	"out", "temp-dir", "node-ext", "group-ext",
	"concurrency", "batch-size", "chunk-size", "page-size", "format",
	"export", "purge", "keep-temp", "seed",
	"log-format", "log-level", "watch", "healthcheck-port",
}

// EnvName returns the environment variable for a config key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Set assigns a config key from its string form.
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "source":
		c.Source = value
	case "out":
		c.Out = value
	case "temp-dir":
		c.TempDir = value
	case "node-ext":
		c.NodeExt = value
	case "group-ext":
		c.GroupExt = value
	case "concurrency":
		c.Concurrency, err = strconv.Atoi(value)
	case "batch-size":
		c.BatchSize, err = strconv.Atoi(value)
	case "chunk-size":
		c.ChunkSize, err = strconv.Atoi(value)
	case "page-size":
		c.PageSize, err = strconv.Atoi(value)
	case "format":
		c.Format = strings.ToLower(value)
	case "export":
		c.Export, err = strconv.ParseBool(value)
	case "purge":
		c.Purge, err = strconv.ParseBool(value)
	case "keep-temp":
		c.KeepTemp, err = strconv.ParseBool(value)
	case "seed":
		c.Seed, err = strconv.ParseUint(value, 10, 64)
	case "log-format":
		c.LogFormat = strings.ToLower(value)
	case "log-level":
		c.LogLevel = strings.ToLower(value)
	case "watch":
		c.Watch, err = strconv.ParseBool(value)
	case "healthcheck-port":
		c.HealthcheckPort, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
	return nil
}

// LoadFile merges the project file at path into c. A missing file is not an
// error.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges GRIDSEED_* variables into c.
func (c *Config) LoadEnv(lookup func(string) (string, bool)) error {
	for _, key := range Keys {
		if v, ok := lookup(EnvName(key)); ok {
			if err := c.Set(key, v); err != nil {
				return fmt.Errorf("%s: %w", EnvName(key), err)
			}
		}
	}
	return nil
}

// NewConfig validates cfg and fills derived defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Source == "" {
		return nil, errors.New("source is a required configuration field and cannot be empty")
	}
	if info, err := os.Stat(cfg.Source); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", cfg.Source)
	}
	if cfg.Out == "" || cfg.TempDir == "" {
		return nil, errors.New("out and temp-dir cannot be empty")
	}
	if cfg.NodeExt == "" || cfg.GroupExt == "" || cfg.NodeExt == cfg.GroupExt {
		return nil, fmt.Errorf("node-ext %q and group-ext %q must be set and differ", cfg.NodeExt, cfg.GroupExt)
	}
	if cfg.Format != tabular.None {
		if err := tabular.Validate(cfg.Format); err != nil {
			return nil, err
		}
	}
	for name, v := range map[string]int{
		"concurrency": cfg.Concurrency,
		"batch-size":  cfg.BatchSize,
		"chunk-size":  cfg.ChunkSize,
	} {
		if v <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if cfg.PageSize < 0 {
		return nil, fmt.Errorf("page-size cannot be negative, got %d", cfg.PageSize)
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = cfg.BatchSize
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck-port %d", cfg.HealthcheckPort)
	}

	cfg.Source = filepath.Clean(cfg.Source)
	return &cfg, nil
}
