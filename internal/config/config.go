package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"

	BackendFile  = "file"
	BackendRedis = "redis"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level

	LLMProvider      string `env:"LLM_PROVIDER" envDefault:"openrouter"`
	OpenRouterAPIKey string `env:"OPEN_ROUTER_API_KEY"`
	LLMBaseURL       string `env:"LLM_BASE_URL"`
	ModelName        string `env:"MODEL_NAME" envDefault:"x-ai/grok-4-fast:free"`

	DataDir        string `env:"DATA_DIR" envDefault:"./data"`
	WorldStatePath string `env:"WORLD_STATE_PATH"`
	StateDir       string `env:"STATE_DIR" envDefault:"./state"`
	UploadDir      string `env:"UPLOAD_DIR"`
	LoreDBPath     string `env:"LORE_DB_PATH"`

	SessionBackend string `env:"SESSION_BACKEND" envDefault:"file"`
	RedisURL       string `env:"REDIS_URL"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
}

// Load reads configuration from the environment, fills paths derived from
// DATA_DIR, and validates the result.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.SessionBackend = strings.ToLower(strings.TrimSpace(cfg.SessionBackend))

	if cfg.WorldStatePath == "" {
		cfg.WorldStatePath = filepath.Join(cfg.DataDir, "world_state.json")
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = filepath.Join(cfg.DataDir, "uploads")
	}
	if cfg.LoreDBPath == "" {
		cfg.LoreDBPath = filepath.Join(cfg.DataDir, "lore.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenRouter:
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPEN_ROUTER_API_KEY is required when LLM_PROVIDER is %s", ProviderOpenRouter)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q (supported: %s, %s)", c.LLMProvider, ProviderOpenRouter, ProviderMock)
	}

	switch c.SessionBackend {
	case BackendFile:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_BACKEND is %s", BackendRedis)
		}
	default:
		return fmt.Errorf("invalid SESSION_BACKEND %q (supported: %s, %s)", c.SessionBackend, BackendFile, BackendRedis)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
