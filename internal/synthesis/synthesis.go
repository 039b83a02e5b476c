// Package synthesis produces short descriptions of chunks for novelty scoring.
// A generative model is used when one is configured; otherwise, or whenever
// the model fails, a deterministic fallback description is returned.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"document-novelty/internal/config"
	"document-novelty/internal/llmservice"
	"document-novelty/internal/models"
)

type Options struct {
	MaxTokens int
	// Temperature is left to the provider when nil
	Temperature *float64
}

// Synthesizer describes chunks. The zero value and a Synthesizer built with a
// nil generator always use the fallback.
type Synthesizer struct {
	generator llmservice.ContentGenerator
	name      string
	opts      Options
}

func New(name string, generator llmservice.ContentGenerator, opts Options) *Synthesizer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 200
	}
	return &Synthesizer{generator: generator, name: name, opts: opts}
}

// FromConfig builds the Synthesizer described by llmConfig. When no provider
// is available, or its client cannot be created, the fallback is returned.
func FromConfig(llmConfig config.LLMConfig) *Synthesizer {
	llmConfig = llmservice.ResolveProvider(llmConfig)
	model, err := llmservice.NewModel(llmConfig)
	if err != nil {
		log.Warn().Err(err).Str("provider", llmConfig.Provider).Msg("Synthesis provider unavailable, using fallback descriptions")
		return NewFallback()
	}
	if model == nil {
		log.Warn().Msg("No synthesis provider available, using fallback descriptions")
		return NewFallback()
	}
	log.Info().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Using synthesis provider")
	return New(llmConfig.Provider, model, Options{
		MaxTokens:   llmConfig.MaxTokens,
		Temperature: llmConfig.Temperature,
	})
}

// NewFallback returns a Synthesizer that never calls a model
func NewFallback() *Synthesizer {
	return New("fallback", nil, Options{})
}

// Synthesize returns a 2-3 sentence description of chunk. before and after
// are the texts of the neighbouring chunks; only the last and first
// ContextWindowChars characters of them are shown to the model.
func (s *Synthesizer) Synthesize(ctx context.Context, chunk, before, after string) string {
	if s == nil || s.generator == nil {
		return Fallback(chunk)
	}
	description, err := s.generate(ctx, chunk, before, after)
	if err != nil {
		log.Warn().Err(err).Str("provider", s.name).Msg("Prompt synthesis failed, using fallback")
		return Fallback(chunk)
	}
	return description
}

func (s *Synthesizer) generate(ctx context.Context, chunk, before, after string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, models.SynthesisSystemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, UserMessage(chunk, before, after)),
	}
	opts := []llms.CallOption{llms.WithMaxTokens(s.opts.MaxTokens)}
	if s.opts.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*s.opts.Temperature))
	}

	text, err := llmservice.GenerateContent(ctx, s.generator, messages, opts...)
	if err != nil {
		return "", models.NewProviderError(s.name, "synthesize", err)
	}
	if text == "" {
		return "", models.NewProviderError(s.name, "synthesize", errors.New("empty description"))
	}
	return text, nil
}

// UserMessage renders the request sent to the model
func UserMessage(chunk, before, after string) string {
	return fmt.Sprintf(models.SynthesisUserTemplate,
		orNone(TailChars(before, models.ContextWindowChars)),
		chunk,
		orNone(HeadChars(after, models.ContextWindowChars)))
}

// Fallback describes chunk without a model: the first FallbackTokenLimit
// whitespace separated tokens behind a fixed prefix.
func Fallback(chunk string) string {
	words := strings.Fields(chunk)
	if len(words) > models.FallbackTokenLimit {
		words = words[:models.FallbackTokenLimit]
	}
	return models.FallbackPrefix + strings.Join(words, " ")
}

// TailChars returns the last n characters of s
func TailChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// HeadChars returns the first n characters of s
func HeadChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orNone(s string) string {
	if s == "" {
		return models.NoContextMarker
	}
	return s
}
