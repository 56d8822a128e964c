package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Remote      RemoteConfig      `koanf:"remote"`
	Schema      SchemaConfig      `koanf:"schema"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Join        JoinConfig        `koanf:"join"`
	Workers     WorkersConfig     `koanf:"workers"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

// RemoteConfig points at the OData service. AuthToken is a static bearer
// token; token acquisition happens outside this process.
type RemoteConfig struct {
	BaseURL        string        `koanf:"base_url"`
	AuthToken      string        `koanf:"auth_token"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxRetries     int           `koanf:"max_retries"`
	BaseBackoff    time.Duration `koanf:"base_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`
	MaxPageSize    int           `koanf:"max_page_size"`
}

type SchemaConfig struct {
	SourceType    string `koanf:"source_type"` // filesystem | none
	Path          string `koanf:"path"`
	CacheCapacity int    `koanf:"cache_capacity"`
}

type AggregationConfig struct {
	DefaultRecordCap  int `koanf:"default_record_cap"`
	SamplingThreshold int `koanf:"sampling_threshold"`
	SampleSize        int `koanf:"sample_size"`
	SampleChunks      int `koanf:"sample_chunks"`
}

type JoinConfig struct {
	DefaultMaxRecords    int    `koanf:"default_max_records"`
	InFilterThreshold    int    `koanf:"in_filter_threshold"`
	SecondaryMultiplier  int    `koanf:"secondary_multiplier"`
	FieldPrefixSeparator string `koanf:"field_prefix_separator"`
}

type WorkersConfig struct {
	Concurrency int `koanf:"concurrency"`
}

// SchemaEnabled reports whether entity metadata is configured.
func (c SchemaConfig) SchemaEnabled() bool {
	return c.SourceType != "none"
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Remote.BaseURL) == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid remote.base_url %q (must be an absolute http(s) URL)", c.Remote.BaseURL)
	}
	if c.Remote.RequestTimeout <= 0 {
		return fmt.Errorf("remote.request_timeout must be > 0")
	}
	if c.Remote.MaxRetries < 0 {
		return fmt.Errorf("remote.max_retries must be >= 0")
	}
	if c.Remote.BaseBackoff <= 0 {
		return fmt.Errorf("remote.base_backoff must be > 0")
	}
	if c.Remote.MaxBackoff < c.Remote.BaseBackoff {
		return fmt.Errorf("remote.max_backoff must be >= remote.base_backoff")
	}
	if c.Remote.MaxPageSize < 0 {
		return fmt.Errorf("remote.max_page_size must be >= 0")
	}

	switch c.Schema.SourceType {
	case "none":
	case "filesystem":
		if strings.TrimSpace(c.Schema.Path) == "" {
			return fmt.Errorf("schema.path is required")
		}
		if _, err := os.Stat(c.Schema.Path); err != nil {
			return fmt.Errorf("schema.path %q is not accessible: %w", c.Schema.Path, err)
		}
	default:
		return fmt.Errorf("unsupported schema.source_type %q", c.Schema.SourceType)
	}
	if c.Schema.CacheCapacity <= 0 {
		return fmt.Errorf("schema.cache_capacity must be > 0")
	}

	if c.Aggregation.DefaultRecordCap <= 0 {
		return fmt.Errorf("aggregation.default_record_cap must be > 0")
	}
	if c.Aggregation.SamplingThreshold <= 0 {
		return fmt.Errorf("aggregation.sampling_threshold must be > 0")
	}
	if c.Aggregation.SampleSize <= 0 {
		return fmt.Errorf("aggregation.sample_size must be > 0")
	}
	if c.Aggregation.SampleChunks <= 0 || c.Aggregation.SampleChunks > c.Aggregation.SampleSize {
		return fmt.Errorf("aggregation.sample_chunks must be between 1 and aggregation.sample_size")
	}

	if c.Join.DefaultMaxRecords <= 0 {
		return fmt.Errorf("join.default_max_records must be > 0")
	}
	if c.Join.InFilterThreshold <= 0 {
		return fmt.Errorf("join.in_filter_threshold must be > 0")
	}
	if c.Join.SecondaryMultiplier <= 0 {
		return fmt.Errorf("join.secondary_multiplier must be > 0")
	}
	if c.Join.FieldPrefixSeparator == "" {
		return fmt.Errorf("join.field_prefix_separator is required")
	}

	if c.Workers.Concurrency <= 0 {
		return fmt.Errorf("workers.concurrency must be > 0")
	}

	return nil
}

// Load parses config from defaults, file and env (in that order of
// precedence, lowest first) and validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                    8080,
		"server.host":                    "0.0.0.0",
		"server.mode":                    "release",
		"remote.base_url":                "",
		"remote.auth_token":              "",
		"remote.request_timeout":         "30s",
		"remote.max_retries":             3,
		"remote.base_backoff":            "1s",
		"remote.max_backoff":             "30s",
		"remote.max_page_size":           0,
		"schema.source_type":             "filesystem",
		"schema.path":                    "./entities",
		"schema.cache_capacity":          1000,
		"aggregation.default_record_cap": 5000,
		"aggregation.sampling_threshold": 100000,
		"aggregation.sample_size":        10000,
		"aggregation.sample_chunks":      10,
		"join.default_max_records":       1000,
		"join.in_filter_threshold":       100,
		"join.secondary_multiplier":      10,
		"join.field_prefix_separator":    "_",
		"workers.concurrency":            5,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("AEVON_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AEVON_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
