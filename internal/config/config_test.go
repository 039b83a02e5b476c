package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("ShouldReturnDefaultsWhenFileMissing", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, ProviderHash, cfg.Embedding.Provider)
		assert.Equal(t, 384, cfg.Embedding.Dimension)
		assert.Equal(t, ProviderAuto, cfg.Synthesis.Provider)
		assert.Equal(t, 100, cfg.Chunking.MinWords)
		assert.Equal(t, 200, cfg.Chunking.MaxWords)
		assert.Equal(t, 5, cfg.Novelty.Neighbors)
		assert.InDelta(t, 2.0, cfg.Novelty.Scale, 1e-12)
		assert.Equal(t, "novelty_chunks", cfg.Archive.Collection)
	})

	t.Run("ShouldApplyProviderDefaults", func(t *testing.T) {
		path := writeConfig(t, `
embedding:
  provider: ollama
synthesis:
  provider: anthropic
novelty:
  scale: 1.5
  timeout_secs: 5
`)
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:11434", cfg.Embedding.BaseURL)
		assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
		assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Synthesis.KeyEnv)
		assert.Equal(t, "claude-3-haiku-20240307", cfg.Synthesis.Model)
		assert.InDelta(t, 1.5, cfg.Novelty.Scale, 1e-12)
		assert.Equal(t, "5s", cfg.Novelty.Timeout().String())
	})

	t.Run("ShouldKeepZeroTemperature", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, "synthesis:\n  temperature: 0\n"))
		require.NoError(t, err)
		require.NotNil(t, cfg.Synthesis.Temperature)
		assert.Zero(t, *cfg.Synthesis.Temperature)
	})

	t.Run("ShouldDefaultUnsetTemperature", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, "synthesis:\n  provider: none\n"))
		require.NoError(t, err)
		require.NotNil(t, cfg.Synthesis.Temperature)
		assert.InDelta(t, 0.7, *cfg.Synthesis.Temperature, 1e-12)
	})

	t.Run("ShouldRejectUnknownProvider", func(t *testing.T) {
		path := writeConfig(t, "embedding:\n  provider: faiss\n")
		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown embedding provider")
	})

	t.Run("ShouldRejectNegativeScale", func(t *testing.T) {
		path := writeConfig(t, "novelty:\n  scale: -1\n")
		_, err := LoadConfig(path)
		require.Error(t, err)
	})

	t.Run("ShouldRejectInvertedChunkBounds", func(t *testing.T) {
		path := writeConfig(t, "chunking:\n  min_words: 300\n  max_words: 200\n")
		_, err := LoadConfig(path)
		require.Error(t, err)
	})

	t.Run("ShouldFailOnMalformedYAML", func(t *testing.T) {
		path := writeConfig(t, "embedding: [unclosed\n")
		_, err := LoadConfig(path)
		require.Error(t, err)
	})
}

func TestAPIKey(t *testing.T) {
	t.Run("ShouldPreferExplicitKey", func(t *testing.T) {
		c := LLMConfig{Key: "Bearer abc", KeyEnv: "NOVELTY_TEST_KEY"}
		assert.Equal(t, "abc", c.APIKey())
	})

	t.Run("ShouldReadKeyFromEnv", func(t *testing.T) {
		t.Setenv("NOVELTY_TEST_KEY", "from-env")
		c := LLMConfig{KeyEnv: "NOVELTY_TEST_KEY"}
		assert.Equal(t, "from-env", c.APIKey())
	})
}
