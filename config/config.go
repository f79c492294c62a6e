package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

type Config struct {
	ListenAddress string      `toml:"ListenAddress"`
	DataDir       string      `toml:"DataDir"`
	Backend       string      `toml:"Backend"`
	Environment   string      `toml:"Environment"`
	Auth          AuthConfig  `toml:"Auth"`
	RateLimit     RateLimit   `toml:"RateLimit"`
	Log           LogConfig   `toml:"Log"`
	Metrics       Metrics     `toml:"Metrics"`
	Telemetry     Telemetry   `toml:"Telemetry"`
	Genesis       GenesisFile `toml:"Genesis"`
}

// AuthConfig bounds how far a signed request timestamp may drift from the
// node clock and how long signatures are remembered for replay protection.
type AuthConfig struct {
	MaxSkewSeconds  int64 `toml:"MaxSkewSeconds"`
	ReplayCacheSize int   `toml:"ReplayCacheSize"`
}

// RateLimit throttles RPC calls per client address. A zero rate disables
// throttling.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
	// TrustProxyHeaders keys clients on X-Real-IP / X-Forwarded-For instead
	// of the socket address.
	TrustProxyHeaders bool `toml:"TrustProxyHeaders"`
}

type LogConfig struct {
	// File enables rotated file output in addition to stdout.
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

type Metrics struct {
	Enabled bool `toml:"Enabled"`
}

// Telemetry configures OTLP/HTTP export of traces and metrics. Headers uses
// the OTEL_EXPORTER_OTLP_HEADERS form, e.g. "authorization=Bearer abc".
type Telemetry struct {
	Enabled  bool   `toml:"Enabled"`
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

type GenesisFile struct {
	Admin    string           `toml:"Admin"`
	Tokens   []GenesisToken   `toml:"Tokens"`
	Balances []GenesisBalance `toml:"Balances"`
}

type GenesisToken struct {
	Symbol   string `toml:"Symbol"`
	Name     string `toml:"Name"`
	Decimals uint8  `toml:"Decimals"`
}

type GenesisBalance struct {
	Account string `toml:"Account"`
	Token   string `toml:"Token"`
	Amount  string `toml:"Amount"`
}

// MaxSkew returns the accepted request clock drift.
func (c *Config) MaxSkew() time.Duration {
	return time.Duration(c.Auth.MaxSkewSeconds) * time.Second
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh install.
func Default() *Config {
	cfg := &Config{
		ListenAddress: ":8645",
		DataDir:       "./quickex-data",
		Backend:       BackendLevelDB,
		Environment:   "dev",
		Metrics:       Metrics{Enabled: true},
		Telemetry:     Telemetry{Endpoint: "localhost:4318", Insecure: true, Traces: true},
		RateLimit:     RateLimit{RequestsPerMinute: 600, Burst: 60},
		Genesis: GenesisFile{
			Tokens:   []GenesisToken{{Symbol: "QXT", Name: "QuickEx Token", Decimals: 6}},
			Balances: []GenesisBalance{},
		},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.Backend) == "" {
		cfg.Backend = BackendLevelDB
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if cfg.Auth.MaxSkewSeconds == 0 {
		cfg.Auth.MaxSkewSeconds = 120
	}
	if cfg.Auth.ReplayCacheSize == 0 {
		cfg.Auth.ReplayCacheSize = 4096
	}
	if cfg.RateLimit.RequestsPerMinute > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 1
	}
	if cfg.Telemetry.Enabled && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		cfg.Telemetry.Endpoint = "localhost:4318"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
