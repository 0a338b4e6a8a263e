package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every environment override, e.g. EVALSUM_SERVER_ADDRESS.
const EnvPrefix = "EVALSUM_"

// Config represents runtime configuration for the service.
type Config struct {
	Server    ServerConfig    `json:"server" envPrefix:"SERVER_"`
	Upload    UploadConfig    `json:"upload" envPrefix:"UPLOAD_"`
	Summary   SummaryConfig   `json:"summary" envPrefix:"SUMMARY_"`
	Provider  ProviderConfig  `json:"provider" envPrefix:"PROVIDER_"`
	Database  DatabaseConfig  `json:"database" envPrefix:"DATABASE_"`
	Redis     RedisConfig     `json:"redis" envPrefix:"REDIS_"`
	RateLimit RateLimitConfig `json:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Log       LogConfig       `json:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Address       string `json:"address" env:"ADDRESS"`
	Development   bool   `json:"development" env:"DEVELOPMENT"`
	AllowedOrigin string `json:"allowed_origin" env:"ALLOWED_ORIGIN"`
}

type UploadConfig struct {
	Dir           string   `json:"dir" env:"DIR"`
	MaxBytes      int64    `json:"max_bytes" env:"MAX_BYTES"`
	SweepInterval Duration `json:"sweep_interval" env:"SWEEP_INTERVAL"`
	OrphanTTL     Duration `json:"orphan_ttl" env:"ORPHAN_TTL"`
}

type SummaryConfig struct {
	MaxChars int      `json:"max_chars" env:"MAX_CHARS"`
	Timeout  Duration `json:"timeout" env:"TIMEOUT"`
	// RequireSections rejects provider output missing a section header.
	// Off by default: the summary is passed through verbatim.
	RequireSections bool `json:"require_sections" env:"REQUIRE_SECTIONS"`
}

// ProviderConfig selects the model backend used for summaries.
type ProviderConfig struct {
	Name             string  `json:"name" env:"NAME"`
	BaseURL          string  `json:"base_url" env:"BASE_URL"`
	Model            string  `json:"model" env:"MODEL"`
	APIKey           string  `json:"api_key" env:"API_KEY"`
	CredentialSource string  `json:"credential_source" env:"CREDENTIAL_SOURCE"`
	MaxTokens        int     `json:"max_tokens" env:"MAX_TOKENS"`
	// Temperature is nil until set so that an explicit 0 survives defaults.
	Temperature *float32 `json:"temperature" env:"TEMPERATURE"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver" env:"DRIVER"`
	DSN      string `json:"dsn" env:"DSN"`
	Host     string `json:"host" env:"HOST"`
	Port     int    `json:"port" env:"PORT"`
	Username string `json:"username" env:"USERNAME"`
	Password string `json:"password" env:"PASSWORD"`
	DBName   string `json:"db_name" env:"DB_NAME"`
	Params   string `json:"params" env:"PARAMS"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" env:"ENABLED"`
	Host     string `json:"host" env:"HOST"`
	Port     int    `json:"port" env:"PORT"`
	Username string `json:"username" env:"USERNAME"`
	Password string `json:"password" env:"PASSWORD"`
	DB       int    `json:"db" env:"DB"`
}

type RateLimitConfig struct {
	Requests int      `json:"requests" env:"REQUESTS"`
	Window   Duration `json:"window" env:"WINDOW"`
}

type LogConfig struct {
	Level       string `json:"level" env:"LEVEL"`
	Development bool   `json:"development" env:"DEVELOPMENT"`
}

// Provider names.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Credential sources.
const (
	CredentialFromRequest = "request"
	CredentialFromServer  = "server"
)

var defaultModels = map[string]string{
	ProviderClaude: "claude-sonnet-4-20250514",
	ProviderOpenAI: "gpt-4",
	ProviderGemini: "gemini-2.5-flash",
}

// Load reads configuration from the provided path (defaults to config.json),
// applies EVALSUM_* environment overrides and fills in defaults. A missing
// default config file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		resolveRelative(&cfg, filepath.Dir(absPath))
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8090"
	}
	if c.Server.AllowedOrigin == "" {
		c.Server.AllowedOrigin = "*"
	}

	if c.Upload.Dir == "" {
		c.Upload.Dir = filepath.Join(os.TempDir(), "uploads")
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = 10 << 20
	}
	if c.Upload.SweepInterval == 0 {
		c.Upload.SweepInterval = Duration(10 * time.Minute)
	}
	if c.Upload.OrphanTTL == 0 {
		c.Upload.OrphanTTL = Duration(time.Hour)
	}

	if c.Summary.MaxChars == 0 {
		c.Summary.MaxChars = 50000
	}
	if c.Summary.Timeout == 0 {
		c.Summary.Timeout = Duration(60 * time.Second)
	}

	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	if c.Provider.Name == "" {
		c.Provider.Name = ProviderClaude
	}
	if c.Provider.Model == "" {
		c.Provider.Model = defaultModels[c.Provider.Name]
	}
	if c.Provider.CredentialSource == "" {
		c.Provider.CredentialSource = CredentialFromRequest
	}
	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = 2000
	}
	if c.Provider.Temperature == nil {
		temperature := float32(0.3)
		c.Provider.Temperature = &temperature
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "127.0.0.1"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}

	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = Duration(time.Minute)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if _, ok := defaultModels[c.Provider.Name]; !ok {
		return fmt.Errorf("unsupported provider: %s", c.Provider.Name)
	}
	switch c.Provider.CredentialSource {
	case CredentialFromRequest, CredentialFromServer:
	default:
		return fmt.Errorf("unsupported credential_source: %s", c.Provider.CredentialSource)
	}
	if c.Upload.MaxBytes < 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	if c.Summary.MaxChars < 0 {
		return errors.New("summary.max_chars must be positive")
	}
	if c.RateLimit.Requests < 0 {
		return errors.New("rate_limit.requests must not be negative")
	}
	switch strings.ToLower(c.Database.Driver) {
	case "", "sqlite", "sqlite3", "mysql":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	return nil
}

func resolveRelative(cfg *Config, base string) {
	driver := strings.ToLower(cfg.Database.Driver)
	if (driver == "sqlite" || driver == "sqlite3") && cfg.Database.DSN != "" &&
		cfg.Database.DSN != ":memory:" && !strings.HasPrefix(cfg.Database.DSN, "file:") &&
		!filepath.IsAbs(cfg.Database.DSN) {
		cfg.Database.DSN = filepath.Join(base, cfg.Database.DSN)
	}
	if cfg.Upload.Dir != "" && !filepath.IsAbs(cfg.Upload.Dir) {
		cfg.Upload.Dir = filepath.Join(base, cfg.Upload.Dir)
	}
}
