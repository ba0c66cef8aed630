// Package config loads and validates server configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// store and search drivers, the queue server, the optional cache and feed,
// and the declarative index definitions.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   DriverConfig  `yaml:"store"`
	Search  DriverConfig  `yaml:"search"`
	Indexer IndexerConfig `yaml:"indexer"`
	Cache   CacheConfig   `yaml:"cache"`
	Feed    FeedConfig    `yaml:"feed"`
	Logging LoggingConfig `yaml:"logging"`
	Indexes []IndexConfig `yaml:"indexes"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DriverConfig names a registered driver and its Init arguments.
type DriverConfig struct {
	Driver string   `yaml:"driver"`
	Args   []string `yaml:"args"`
}

// IndexerConfig controls the queue server and id generation.
type IndexerConfig struct {
	Buffer         int           `yaml:"buffer"`
	NumRoutines    int           `yaml:"numRoutines"`
	SweepInterval  time.Duration `yaml:"sweepInterval"` // 0 disables the sweep loop
	NumCharsUnique int           `yaml:"numCharsUnique"`
}

// CacheConfig selects the fingerprint cache: "none", "lru" or "redis".
type CacheConfig struct {
	Kind  string      `yaml:"kind"`
	Size  int         `yaml:"size"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection parameters for the redis cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// FeedConfig enables consuming a Kafka change feed.
type FeedConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Group   string   `yaml:"group"`
	Workers int      `yaml:"workers"`
}

// LoggingConfig controls the logrus level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// IndexConfig declares the indexes for one kind.
type IndexConfig struct {
	Kind       string           `yaml:"kind"`
	Properties []string         `yaml:"properties"`
	Relations  []RelationConfig `yaml:"relations"`
}

// RelationConfig declares one relation index entry. Entries sharing a base
// must share the relType, a base is bound to a single relationship type.
type RelationConfig struct {
	Base       string   `yaml:"base"`
	RelType    string   `yaml:"relType"`
	Properties []string `yaml:"properties"`
}

// Load reads a YAML config file (if provided) and applies environment
// variable overrides. It returns a Config populated with defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config which runs fully in-process, no external
// services needed.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: DriverConfig{
			Driver: "memgraph",
		},
		Search: DriverConfig{
			Driver: "memsearch",
		},
		Indexer: IndexerConfig{
			Buffer:         1000,
			NumRoutines:    2,
			NumCharsUnique: 10,
		},
		Cache: CacheConfig{
			Kind: "lru",
			Size: 10000,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				TTL:  24 * time.Hour,
			},
		},
		Feed: FeedConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "graph-changes",
			Group:   "graph-indexer",
			Workers: 2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyEnvOverrides reads GRAPH_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAPH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GRAPH_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("GRAPH_STORE_ARGS"); v != "" {
		cfg.Store.Args = strings.Split(v, ",")
	}
	if v := os.Getenv("GRAPH_SEARCH_DRIVER"); v != "" {
		cfg.Search.Driver = v
	}
	if v := os.Getenv("GRAPH_SEARCH_ARGS"); v != "" {
		cfg.Search.Args = strings.Split(v, ",")
	}
	if v := os.Getenv("GRAPH_KAFKA_BROKERS"); v != "" {
		cfg.Feed.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("GRAPH_REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("GRAPH_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate reports the first problem which would make the config unusable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Store.Driver == "" {
		return fmt.Errorf("config: store driver missing")
	}
	if c.Search.Driver == "" {
		return fmt.Errorf("config: search driver missing")
	}
	if c.Indexer.Buffer <= 0 {
		return fmt.Errorf("config: indexer buffer must be positive, got %d", c.Indexer.Buffer)
	}
	if c.Indexer.NumRoutines <= 0 {
		return fmt.Errorf("config: indexer numRoutines must be positive, got %d", c.Indexer.NumRoutines)
	}
	switch c.Cache.Kind {
	case "", "none", "lru", "redis":
	default:
		return fmt.Errorf("config: unknown cache kind %q", c.Cache.Kind)
	}

	kinds := make(map[string]bool)
	for _, idx := range c.Indexes {
		if idx.Kind == "" {
			return fmt.Errorf("config: index with empty kind")
		}
		if kinds[idx.Kind] {
			return fmt.Errorf("config: duplicate index kind %q", idx.Kind)
		}
		kinds[idx.Kind] = true

		bases := make(map[string]string)
		for _, rel := range idx.Relations {
			if rel.Base == "" || rel.RelType == "" {
				return fmt.Errorf("config: relation index on %q needs base and relType", idx.Kind)
			}
			if len(rel.Properties) == 0 {
				return fmt.Errorf("config: relation index %q.%q has no properties", idx.Kind, rel.Base)
			}
			if prev, present := bases[rel.Base]; present && prev != rel.RelType {
				return fmt.Errorf("config: base %q on %q bound to both %q and %q",
					rel.Base, idx.Kind, prev, rel.RelType)
			}
			bases[rel.Base] = rel.RelType
		}
	}
	return nil
}
