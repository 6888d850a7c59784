package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration, loaded from TOML with
// environment overrides applied on top.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Clients  ClientsConfig  `toml:"clients"`
	Analysis AnalysisConfig `toml:"analysis"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	Path string `toml:"path"`
	// FilingCachePath holds the per-date filing index JSON cache.
	FilingCachePath string `toml:"filing_cache_path"`
	// FilingDocumentPath is where retrieved filing archives are extracted.
	FilingDocumentPath string `toml:"filing_document_path"`
}

type ClientsConfig struct {
	JQuants JQuantsConfig `toml:"jquants"`
	EDINET  EDINETConfig  `toml:"edinet"`
}

type JQuantsConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	// RateLimit is requests per second against the API.
	RateLimit float64 `toml:"rate_limit"`
	TimeoutMS int     `toml:"timeout_ms"`
}

type EDINETConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	TimeoutMS int    `toml:"timeout_ms"`
	// Workers bounds the concurrent per-date index fetches.
	Workers int `toml:"workers"`
}

type AnalysisConfig struct {
	// MaxYears is how many fiscal years of annual records to analyze.
	MaxYears int `toml:"max_years"`
	// Quarters is how many quarterly periods to derive when requested.
	Quarters     int  `toml:"quarters"`
	CacheEnabled bool `toml:"cache_enabled"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns the configuration used when no file is present.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path:               "./data/kessan",
			FilingCachePath:    "./data/edinet_index",
			FilingDocumentPath: "./data/edinet_docs",
		},
		Clients: ClientsConfig{
			JQuants: JQuantsConfig{
				BaseURL:   "https://api.jquants.com/v2",
				RateLimit: 5,
				TimeoutMS: 30000,
			},
			EDINET: EDINETConfig{
				BaseURL:   "https://api.edinet-fsa.go.jp/api/v2",
				TimeoutMS: 30000,
				Workers:   10,
			},
		},
		Analysis: AnalysisConfig{
			MaxYears:     5,
			Quarters:     8,
			CacheEnabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads the first existing TOML file from paths over the default
// configuration, then applies environment overrides. A missing file is not an
// error; a malformed one is.
func LoadConfig(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		break
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KESSAN_SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("KESSAN_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("KESSAN_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("KESSAN_FILING_CACHE_PATH"); v != "" {
		c.Storage.FilingCachePath = v
	}
	if v := os.Getenv("KESSAN_FILING_DOCUMENT_PATH"); v != "" {
		c.Storage.FilingDocumentPath = v
	}
	if v := os.Getenv("JQUANTS_API_KEY"); v != "" {
		c.Clients.JQuants.APIKey = v
	}
	if v := os.Getenv("EDINET_API_KEY"); v != "" {
		c.Clients.EDINET.APIKey = v
	}
	if v := os.Getenv("KESSAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KESSAN_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("KESSAN_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Analysis.CacheEnabled = b
		}
	}
}

// Validate checks that the configuration is usable at startup.
func (c *Config) Validate() error {
	if c.Clients.JQuants.APIKey == "" {
		return fmt.Errorf("jquants api key is required (set JQUANTS_API_KEY)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func (c *JQuantsConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c *EDINETConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
