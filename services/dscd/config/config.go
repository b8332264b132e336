package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for dscd.
type Config struct {
	ListenAddress  string          `yaml:"listen"`
	GenesisPath    string          `yaml:"genesis"`
	DataDir        string          `yaml:"data_dir"`
	OracleDatabase string          `yaml:"oracle_database"`
	Log            LogConfig       `yaml:"log"`
	Telemetry      TelemetryConfig `yaml:"telemetry"`
	Indexer        IndexerConfig   `yaml:"indexer"`
	Auth           AuthConfig      `yaml:"auth"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Oracle         OracleConfig    `yaml:"oracle"`
	Sources        []Source        `yaml:"sources"`
	Feeds          []Feed          `yaml:"feeds"`
	Stream         StreamConfig    `yaml:"stream"`
	Paused         bool            `yaml:"paused"`
}

// LogConfig selects the log level and an optional rotating log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// TelemetryConfig points the OTLP exporters at a collector. With no endpoint
// the OTEL_EXPORTER_OTLP_* environment is consulted; with neither, nothing is
// exported.
type TelemetryConfig struct {
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	Environment string            `yaml:"environment"`
	Traces      *bool             `yaml:"traces"`
	Metrics     *bool             `yaml:"metrics"`
}

// TracesEnabled reports whether spans are exported. Unset means enabled.
func (t TelemetryConfig) TracesEnabled() bool { return t.Traces == nil || *t.Traces }

// MetricsEnabled reports whether metrics are exported. Unset means enabled.
func (t TelemetryConfig) MetricsEnabled() bool { return t.Metrics == nil || *t.Metrics }

// IndexerConfig selects the event history database. Buffer is the number of
// committed events queued for the indexer ahead of the database.
type IndexerConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Buffer int    `yaml:"buffer"`
}

// AuthConfig configures bearer token verification. The token subject is the
// caller address.
type AuthConfig struct {
	HMACSecret string   `yaml:"hmac_secret"`
	Issuer     string   `yaml:"issuer"`
	Audience   string   `yaml:"audience"`
	ScopeClaim string   `yaml:"scope_claim"`
	AdminScope string   `yaml:"admin_scope"`
	ClockSkew  Duration `yaml:"clock_skew"`
}

// RateLimitConfig bounds mutating requests per caller.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// OracleConfig tunes the aggregation loop.
type OracleConfig struct {
	Interval Duration `yaml:"interval"`
	MaxAge   Duration `yaml:"max_age"`
	MinFeeds int      `yaml:"min_feeds"`
}

// Source describes an upstream price source.
type Source struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Endpoint string            `yaml:"endpoint"`
	APIKey   string            `yaml:"api_key"`
	Assets   map[string]string `yaml:"assets"`
}

// Feed names the asset symbol a listed price feed publishes.
type Feed struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

// StreamConfig tunes the websocket event stream.
type StreamConfig struct {
	Buffer int `yaml:"buffer"`
}

// Load reads configuration from the supplied path.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7080"
	}
	if cfg.GenesisPath == "" {
		cfg.GenesisPath = "services/dscd/genesis.toml"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "/var/data/dscd/state"
	}
	if cfg.OracleDatabase == "" {
		cfg.OracleDatabase = "/var/data/dscd/oracle.sqlite"
	}
	if cfg.Indexer.Driver == "" {
		cfg.Indexer.Driver = "sqlite"
	}
	if cfg.Indexer.DSN == "" && cfg.Indexer.Driver == "sqlite" {
		cfg.Indexer.DSN = "file:/var/data/dscd/events.sqlite?_pragma=busy_timeout(5000)"
	}
	if cfg.Indexer.Buffer <= 0 {
		cfg.Indexer.Buffer = 1024
	}
	if cfg.Auth.ScopeClaim == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
	if cfg.Auth.AdminScope == "" {
		cfg.Auth.AdminScope = "dsc:admin"
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 120
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 20
	}
	if cfg.Oracle.Interval.Duration == 0 {
		cfg.Oracle.Interval.Duration = 30 * time.Second
	}
	if cfg.Oracle.MaxAge.Duration == 0 {
		cfg.Oracle.MaxAge.Duration = 2 * time.Minute
	}
	if cfg.Oracle.MinFeeds <= 0 {
		cfg.Oracle.MinFeeds = 1
	}
	for i := range cfg.Feeds {
		if cfg.Feeds[i].Decimals == 0 {
			cfg.Feeds[i].Decimals = 8
		}
	}
	if cfg.Stream.Buffer <= 0 {
		cfg.Stream.Buffer = 64
	}
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth.hmac_secret must be configured")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Indexer.Driver)) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("indexer.driver must be sqlite or postgres, got %q", cfg.Indexer.Driver)
	}
	if strings.TrimSpace(cfg.Indexer.DSN) == "" {
		return fmt.Errorf("indexer.dsn must be configured")
	}
	seen := make(map[common.Address]struct{}, len(cfg.Feeds))
	for i, feed := range cfg.Feeds {
		if !common.IsHexAddress(strings.TrimSpace(feed.Address)) {
			return fmt.Errorf("feeds[%d]: invalid address %q", i, feed.Address)
		}
		addr := common.HexToAddress(strings.TrimSpace(feed.Address))
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("feeds[%d]: duplicate feed %s", i, addr.Hex())
		}
		seen[addr] = struct{}{}
		if strings.TrimSpace(feed.Symbol) == "" {
			return fmt.Errorf("feeds[%d]: symbol must be configured", i)
		}
	}
	if len(cfg.Feeds) > 0 && len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one oracle source must be configured when feeds are listed")
	}
	return nil
}
