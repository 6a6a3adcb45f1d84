package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Embeddings always go through OpenAI; chat may use either backend.
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	ChatBackend     string  `envconfig:"CHAT_BACKEND" default:"openai"`
	ChatModel       string  `envconfig:"CHAT_MODEL"`
	ChatTemperature float32 `envconfig:"CHAT_TEMPERATURE" default:"0.2"`
	ChatMaxTokens   int     `envconfig:"CHAT_MAX_TOKENS" default:"2048"`
	ChatTopP        float32 `envconfig:"CHAT_TOP_P"`
	ChatTopK        int     `envconfig:"CHAT_TOP_K"`
	RetrievalTopK   int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	ContextBudget   int     `envconfig:"CONTEXT_BUDGET_TOKENS" default:"30000"`

	// Secret sealing for stored mail passwords.
	SecretPassphrase string `envconfig:"SECRET_PASSPHRASE"`

	// Optional archive of raw uploads.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"instant-rag-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN string `envconfig:"SENTRY_DSN"`

	// Stale-document janitor.
	JanitorInterval time.Duration `envconfig:"JANITOR_INTERVAL" default:"1m"`
	JanitorMaxAge   time.Duration `envconfig:"JANITOR_MAX_AGE" default:"30m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("INSTARAG", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasGemini() bool {
	return c.GeminiAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
