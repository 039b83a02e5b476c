package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-novelty/internal/config"
	"document-novelty/internal/models"
)

// Provider maps texts to embedding vectors. The result has the same length and
// order as texts and every vector has the same dimension.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// New builds the provider selected by cfg.Provider, wrapped in an LRU cache
// when cfg.CacheSize is positive.
func New(cfg *config.LLMConfig) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case config.ProviderOllama:
		p, err = NewOllamaEmbedder(cfg)
	case config.ProviderOpenAI:
		p, err = NewOpenAIEmbedder(cfg)
	case config.ProviderOpenAINative:
		p, err = NewOpenAINativeEmbedder(cfg)
	case config.ProviderHash:
		p = NewHashEmbedder(cfg.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		return NewCachedProvider(p, cfg.CacheSize)
	}
	return p, nil
}

// LangchainProvider embeds through a langchaingo embedder
type LangchainProvider struct {
	name     string
	embedder embeddings.Embedder
}

func NewLangchainProvider(name string, embedder embeddings.Embedder) *LangchainProvider {
	return &LangchainProvider{name: name, embedder: embedder}
}

// new ollama embedder
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*LangchainProvider, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating ollama embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(llmConfig.BaseURL),
		ollama.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, batchOptions(llmConfig)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return NewLangchainProvider(config.ProviderOllama, embedder), nil
}

// NewOpenAIEmbedder creates an embedder for any OpenAI compatible endpoint
func NewOpenAIEmbedder(llmConfig *config.LLMConfig) (*LangchainProvider, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating openai embedder")

	opts := []openai.Option{
		openai.WithToken(llmConfig.APIKey()),
		openai.WithEmbeddingModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, batchOptions(llmConfig)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return NewLangchainProvider(config.ProviderOpenAI, embedder), nil
}

func batchOptions(llmConfig *config.LLMConfig) []embeddings.Option {
	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if llmConfig.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(llmConfig.BatchSize))
	}
	return opts
}

// Embed sends all texts in one EmbedDocuments call
func (p *LangchainProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, models.NewProviderError(p.name, "embed", err)
	}
	if err := validateBatch(len(texts), vectors); err != nil {
		return nil, models.NewProviderError(p.name, "embed", err)
	}
	return vectors, nil
}

// validateBatch checks a provider response against the request size
func validateBatch(want int, vectors [][]float32) error {
	if len(vectors) != want {
		return fmt.Errorf("received %d embeddings for %d texts", len(vectors), want)
	}
	dim := -1
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("embedding %d is empty", i)
		}
		if dim == -1 {
			dim = len(v)
			continue
		}
		if len(v) != dim {
			return fmt.Errorf("embedding %d has dimension %d, expected %d: %w", i, len(v), dim, models.ErrDimensionMismatch)
		}
	}
	return nil
}
