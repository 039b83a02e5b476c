package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// CachedProvider memoises embeddings of identical texts
type CachedProvider struct {
	next  Provider
	cache *lru.Cache[string, []float32]
}

func NewCachedProvider(next Provider, size int) (*CachedProvider, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	return &CachedProvider{next: next, cache: cache}, nil
}

// Embed serves cached vectors and forwards the remaining unique texts to the
// wrapped provider in a single call.
func (c *CachedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missing := make(map[string][]int)
	var pending []string
	for i, text := range texts {
		key := cacheKey(text)
		if v, ok := c.cache.Get(key); ok {
			out[i] = slices.Clone(v)
			continue
		}
		if _, seen := missing[key]; !seen {
			pending = append(pending, text)
		}
		missing[key] = append(missing[key], i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	log.Debug().Int("hits", len(texts)-countPositions(missing)).Int("misses", len(pending)).Msg("Embedding cache lookup")
	vectors, err := c.next.Embed(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pending) {
		return nil, fmt.Errorf("received %d embeddings for %d texts", len(vectors), len(pending))
	}
	for i, text := range pending {
		key := cacheKey(text)
		c.cache.Add(key, slices.Clone(vectors[i]))
		for _, pos := range missing[key] {
			out[pos] = slices.Clone(vectors[i])
		}
	}
	return out, nil
}

func countPositions(m map[string][]int) int {
	n := 0
	for _, positions := range m {
		n += len(positions)
	}
	return n
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
