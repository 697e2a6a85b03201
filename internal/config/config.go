package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type LLM struct {
	BaseURL          string        `env:"OPENAI_BASE_URL" env-default:"http://localhost:11434/v1/"`
	APIKey           string        `env:"OPENAI_API_KEY"`
	Model            string        `env:"OPENAI_MODEL" env-default:"llama3.1:8b"`
	MaxContextTokens int           `env:"LLM_MAX_CONTEXT_TOKENS" env-default:"4096"`
	RequestTimeout   time.Duration `env:"LLM_REQUEST_TIMEOUT" env-default:"60s"`
}

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" env-default:":8100"`
	DBPath     string `env:"DB_PATH" env-default:"chats.db"`
	LLM        LLM
}

// Load reads configuration from the environment, picking up a local .env
// file first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from env: %w", err)
	}
	if cfg.LLM.MaxContextTokens <= 0 {
		return nil, fmt.Errorf("LLM_MAX_CONTEXT_TOKENS must be positive, got %d", cfg.LLM.MaxContextTokens)
	}
	return &cfg, nil
}
