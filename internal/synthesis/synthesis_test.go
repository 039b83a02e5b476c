package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"document-novelty/internal/config"
)

type recordingGenerator struct {
	answer   string
	err      error
	messages []llms.MessageContent
	options  []llms.CallOption
}

func (r *recordingGenerator) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	r.messages = messages
	r.options = options
	if r.err != nil {
		return nil, r.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: r.answer}}}, nil
}

func (r *recordingGenerator) callOptions() llms.CallOptions {
	var opts llms.CallOptions
	for _, o := range r.options {
		o(&opts)
	}
	return opts
}

func temperature(v float64) *float64 {
	return &v
}

func (r *recordingGenerator) userText(t *testing.T) string {
	t.Helper()
	require.Len(t, r.messages, 2)
	require.Len(t, r.messages[1].Parts, 1)
	part, ok := r.messages[1].Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("word%d", i+1)
	}
	return strings.Join(w, " ")
}

func TestFallback(t *testing.T) {
	t.Run("ShouldKeepFirstFiftyTokens", func(t *testing.T) {
		got := NewFallback().Synthesize(context.Background(), words(52), "", "")
		assert.Equal(t, "Write about: "+words(50), got)
	})

	t.Run("ShouldCollapseWhitespace", func(t *testing.T) {
		assert.Equal(t, "Write about: a b c", Fallback("  a\n\tb   c "))
	})

	t.Run("ShouldHandleEmptyChunk", func(t *testing.T) {
		assert.Equal(t, "Write about: ", Fallback(""))
	})

	t.Run("ShouldWorkOnNilSynthesizer", func(t *testing.T) {
		var s *Synthesizer
		assert.Equal(t, "Write about: x", s.Synthesize(context.Background(), "x", "", ""))
	})
}

func TestSynthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldReturnModelDescription", func(t *testing.T) {
		gen := &recordingGenerator{answer: "  Describe quantum tunnelling.  "}
		s := New("stub", gen, Options{MaxTokens: 50, Temperature: temperature(0.7)})
		assert.Equal(t, "Describe quantum tunnelling.", s.Synthesize(ctx, "chunk text", "", ""))
		assert.Equal(t, schema.ChatMessageTypeSystem, gen.messages[0].Role)
		assert.Equal(t, schema.ChatMessageTypeHuman, gen.messages[1].Role)
	})

	t.Run("ShouldPassConfiguredSampling", func(t *testing.T) {
		gen := &recordingGenerator{answer: "ok"}
		New("stub", gen, Options{MaxTokens: 50, Temperature: temperature(0.7)}).Synthesize(ctx, "x", "", "")
		opts := gen.callOptions()
		assert.Equal(t, 50, opts.MaxTokens)
		assert.InDelta(t, 0.7, opts.Temperature, 1e-12)
	})

	t.Run("ShouldSendZeroTemperature", func(t *testing.T) {
		gen := &recordingGenerator{answer: "ok"}
		New("stub", gen, Options{Temperature: temperature(0)}).Synthesize(ctx, "x", "", "")
		assert.Len(t, gen.options, 2)
		assert.Zero(t, gen.callOptions().Temperature)
	})

	t.Run("ShouldLeaveTemperatureUnsetWhenNil", func(t *testing.T) {
		gen := &recordingGenerator{answer: "ok"}
		New("stub", gen, Options{}).Synthesize(ctx, "x", "", "")
		assert.Len(t, gen.options, 1)
	})

	t.Run("ShouldFallBackOnProviderError", func(t *testing.T) {
		s := New("stub", &recordingGenerator{err: errors.New("rate limited")}, Options{})
		assert.Equal(t, "Write about: alpha beta", s.Synthesize(ctx, "alpha beta", "", ""))
	})

	t.Run("ShouldFallBackOnBlankAnswer", func(t *testing.T) {
		s := New("stub", &recordingGenerator{answer: "   "}, Options{})
		assert.Equal(t, "Write about: alpha", s.Synthesize(ctx, "alpha", "", ""))
	})

	t.Run("ShouldWindowContext", func(t *testing.T) {
		gen := &recordingGenerator{answer: "ok"}
		s := New("stub", gen, Options{})
		before := strings.Repeat("5", 150) + strings.Repeat("6", 200)
		after := strings.Repeat("8", 200) + strings.Repeat("9", 150)
		s.Synthesize(ctx, "target", before, after)

		msg := gen.userText(t)
		assert.Contains(t, msg, "Context before:\n"+strings.Repeat("6", 200)+"\n")
		assert.NotContains(t, msg, "5")
		assert.Contains(t, msg, "Context after:\n"+strings.Repeat("8", 200)+"\n")
		assert.NotContains(t, msg, "9")
		assert.Contains(t, msg, "Target text:\ntarget\n")
	})

	t.Run("ShouldMarkMissingContext", func(t *testing.T) {
		gen := &recordingGenerator{answer: "ok"}
		New("stub", gen, Options{}).Synthesize(ctx, "target", "", "")
		msg := gen.userText(t)
		assert.Equal(t, 2, strings.Count(msg, "[None]"))
	})
}

func TestCharWindows(t *testing.T) {
	assert.Equal(t, "llo", TailChars("hello", 3))
	assert.Equal(t, "hel", HeadChars("hello", 3))
	assert.Equal(t, "hi", TailChars("hi", 3))
	assert.Equal(t, "ßü", TailChars("aßü", 2))
	assert.Equal(t, "aß", HeadChars("aßü", 2))
}

func TestFromConfig(t *testing.T) {
	t.Run("ShouldFallBackWhenProviderKeyIsMissing", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("NOVELTY_TEST_MISSING_KEY", "")
		for _, provider := range []string{config.ProviderAnthropic, config.ProviderOpenAI} {
			s := FromConfig(config.LLMConfig{Provider: provider, Model: "m", KeyEnv: "NOVELTY_TEST_MISSING_KEY"})
			require.NotNil(t, s, provider)
			assert.Nil(t, s.generator, provider)
			assert.Equal(t, "Write about: alpha", s.Synthesize(context.Background(), "alpha", "", ""))
		}
	})

	t.Run("ShouldFallBackWithoutProvider", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "")
		for _, provider := range []string{config.ProviderNone, config.ProviderAuto} {
			s := FromConfig(config.LLMConfig{Provider: provider})
			assert.Nil(t, s.generator, provider)
		}
	})

	t.Run("ShouldBuildConfiguredModel", func(t *testing.T) {
		s := FromConfig(config.LLMConfig{
			Provider:    config.ProviderOllama,
			BaseURL:     "http://localhost:11434",
			Model:       "llama3",
			MaxTokens:   120,
			Temperature: temperature(0),
		})
		assert.NotNil(t, s.generator)
		assert.Equal(t, config.ProviderOllama, s.name)
		assert.Equal(t, 120, s.opts.MaxTokens)
		require.NotNil(t, s.opts.Temperature)
		assert.Zero(t, *s.opts.Temperature)
	})
}
