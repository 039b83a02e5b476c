package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"document-novelty/internal/models"
)

const (
	ProviderNone         = "none"
	ProviderAuto         = "auto"
	ProviderOpenAI       = "openai"
	ProviderOpenAINative = "openai-native"
	ProviderOllama       = "ollama"
	ProviderAnthropic    = "anthropic"
	ProviderHash         = "hash"
)

const defaultTemperature = 0.7

// LLMConfig describes one external model endpoint
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Key       string `yaml:"key"`
	KeyEnv    string `yaml:"key_env"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
	CacheSize int    `yaml:"cache_size"`
	MaxTokens int    `yaml:"max_tokens"`
	// Temperature is nil when unset. Zero is a valid setting.
	Temperature *float64 `yaml:"temperature"`
}

// APIKey returns the configured key, falling back to the key_env variable
func (c *LLMConfig) APIKey() string {
	if c.Key != "" {
		return strings.TrimPrefix(c.Key, "Bearer ")
	}
	if c.KeyEnv != "" {
		return os.Getenv(c.KeyEnv)
	}
	return ""
}

type ChunkConfig struct {
	MinWords int `yaml:"min_words"`
	MaxWords int `yaml:"max_words"`
}

type NoveltyConfig struct {
	Neighbors      int     `yaml:"neighbors"`
	Scale          float64 `yaml:"scale"`
	Workers        int     `yaml:"workers"`
	TimeoutSecs    int     `yaml:"timeout_secs"`
	EmbedRetries   int     `yaml:"embed_retries"`
	RetryBackoffMs int     `yaml:"retry_backoff_ms"`
}

func (c NoveltyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

func (c NoveltyConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

type ArchiveConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Embedding LLMConfig     `yaml:"embedding"`
	Synthesis LLMConfig     `yaml:"synthesis"`
	Chunking  ChunkConfig   `yaml:"chunking"`
	Novelty   NoveltyConfig `yaml:"novelty"`
	Archive   ArchiveConfig `yaml:"archive"`
}

// LoadConfig reads the YAML config at path. A missing file yields the
// defaults. Variables from a .env file in the working directory are loaded
// first so key_env lookups can see them.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderHash
	}
	switch cfg.Embedding.Provider {
	case ProviderOllama:
		if cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "nomic-embed-text"
		}
	case ProviderOpenAI, ProviderOpenAINative:
		if cfg.Embedding.KeyEnv == "" {
			cfg.Embedding.KeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "text-embedding-3-small"
		}
	case ProviderHash:
		if cfg.Embedding.Dimension == 0 {
			cfg.Embedding.Dimension = 384
		}
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}

	if cfg.Synthesis.Provider == "" {
		cfg.Synthesis.Provider = ProviderAuto
	}
	switch cfg.Synthesis.Provider {
	case ProviderAnthropic:
		if cfg.Synthesis.KeyEnv == "" {
			cfg.Synthesis.KeyEnv = "ANTHROPIC_API_KEY"
		}
		if cfg.Synthesis.Model == "" {
			cfg.Synthesis.Model = "claude-3-haiku-20240307"
		}
	case ProviderOpenAI:
		if cfg.Synthesis.KeyEnv == "" {
			cfg.Synthesis.KeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Synthesis.Model == "" {
			cfg.Synthesis.Model = "gpt-3.5-turbo"
		}
	case ProviderOllama:
		if cfg.Synthesis.BaseURL == "" {
			cfg.Synthesis.BaseURL = "http://localhost:11434"
		}
		if cfg.Synthesis.Model == "" {
			cfg.Synthesis.Model = "llama3"
		}
	}
	if cfg.Synthesis.MaxTokens == 0 {
		cfg.Synthesis.MaxTokens = 200
	}
	if cfg.Synthesis.Temperature == nil {
		temperature := defaultTemperature
		cfg.Synthesis.Temperature = &temperature
	}

	if cfg.Chunking.MinWords == 0 {
		cfg.Chunking.MinWords = models.DefaultMinChunkWords
	}
	if cfg.Chunking.MaxWords == 0 {
		cfg.Chunking.MaxWords = models.DefaultMaxChunkWords
	}

	if cfg.Novelty.Neighbors == 0 {
		cfg.Novelty.Neighbors = models.DefaultNeighbors
	}
	if cfg.Novelty.Scale == 0 {
		cfg.Novelty.Scale = models.DefaultScale
	}
	if cfg.Novelty.Workers == 0 {
		cfg.Novelty.Workers = 4
	}
	if cfg.Novelty.TimeoutSecs == 0 {
		cfg.Novelty.TimeoutSecs = 30
	}
	if cfg.Novelty.EmbedRetries == 0 {
		cfg.Novelty.EmbedRetries = 2
	}
	if cfg.Novelty.RetryBackoffMs == 0 {
		cfg.Novelty.RetryBackoffMs = 200
	}

	if cfg.Archive.Path == "" {
		cfg.Archive.Path = "./chromemdb"
	}
	if cfg.Archive.Collection == "" {
		cfg.Archive.Collection = "novelty_chunks"
	}
}

// Validate reports settings that cannot be repaired by defaults
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderOpenAINative, ProviderHash:
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.Embedding.Provider)
	}
	switch c.Synthesis.Provider {
	case ProviderNone, ProviderAuto, ProviderAnthropic, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown synthesis provider: %s", c.Synthesis.Provider)
	}
	if c.Novelty.Scale <= 0 {
		return fmt.Errorf("novelty scale must be positive, got %v", c.Novelty.Scale)
	}
	if c.Novelty.Neighbors < 1 {
		return fmt.Errorf("novelty neighbors must be at least 1, got %d", c.Novelty.Neighbors)
	}
	if c.Chunking.MinWords < 1 || c.Chunking.MaxWords < c.Chunking.MinWords {
		return fmt.Errorf("invalid chunk bounds: min=%d max=%d", c.Chunking.MinWords, c.Chunking.MaxWords)
	}
	return nil
}
