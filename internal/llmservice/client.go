package llmservice

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-novelty/internal/config"
)

// keys copied from sample .env files are treated as unset
var placeholderKeys = map[string]bool{
	"your_anthropic_api_key_here": true,
	"your_openai_api_key_here":    true,
}

// ResolveProvider turns the "auto" provider into a concrete one based on which
// API keys are present: anthropic first, then openai, otherwise none.
func ResolveProvider(llmConfig config.LLMConfig) config.LLMConfig {
	if llmConfig.Provider != config.ProviderAuto {
		return llmConfig
	}
	resolved := llmConfig
	switch {
	case usableKey(os.Getenv("ANTHROPIC_API_KEY")):
		resolved.Provider = config.ProviderAnthropic
		resolved.KeyEnv = "ANTHROPIC_API_KEY"
		if resolved.Model == "" {
			resolved.Model = "claude-3-haiku-20240307"
		}
	case usableKey(os.Getenv("OPENAI_API_KEY")):
		resolved.Provider = config.ProviderOpenAI
		resolved.KeyEnv = "OPENAI_API_KEY"
		if resolved.Model == "" {
			resolved.Model = "gpt-3.5-turbo"
		}
	default:
		resolved.Provider = config.ProviderNone
	}
	log.Info().Str("provider", resolved.Provider).Msg("Resolved synthesis provider")
	return resolved
}

func usableKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && !placeholderKeys[key]
}

// NewModel creates the generative model for llmConfig. It returns nil and no
// error when no provider is configured. Callers resolve "auto" with
// ResolveProvider first when they need to know the chosen provider.
func NewModel(llmConfig config.LLMConfig) (llms.Model, error) {
	if llmConfig.Provider == config.ProviderAuto {
		llmConfig = ResolveProvider(llmConfig)
	}
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Creating llm client")

	switch llmConfig.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderAnthropic:
		llm, err := anthropic.New(
			anthropic.WithToken(llmConfig.APIKey()),
			anthropic.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize anthropic: %w", err)
		}
		return llm, nil
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(llmConfig.APIKey()),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai: %w", err)
		}
		return llm, nil
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", llmConfig.Provider)
	}
}

// ContentGenerator is the part of llms.Model needed to generate text
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// call llm
func GenerateContent(ctx context.Context, llm ContentGenerator, messages []llms.MessageContent, options ...llms.CallOption) (string, error) {
	res, err := llm.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}
