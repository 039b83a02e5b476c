package novelty

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"document-novelty/internal/embedding"
	"document-novelty/internal/index"
	"document-novelty/internal/models"
)

// PromptSynthesizer describes a chunk given its neighbours. It never fails;
// implementations fall back to a deterministic description.
type PromptSynthesizer interface {
	Synthesize(ctx context.Context, chunk, before, after string) string
}

// Scorer computes a novelty score per chunk
type Scorer struct {
	embedder    embedding.Provider
	synthesizer PromptSynthesizer
	opts        Options
}

func NewScorer(embedder embedding.Provider, synthesizer PromptSynthesizer, opts Options) *Scorer {
	opts.sanitize()
	return &Scorer{embedder: embedder, synthesizer: synthesizer, opts: opts}
}

// result is the outcome of scoring one chunk
type result struct {
	score float64
	err   error
}

func (r result) resolve() float64 {
	if r.err != nil {
		return models.NeutralScore
	}
	return r.score
}

// Score returns one score per chunk, in chunk order. idx must be built from
// embeddings, which hold the embedding of each chunk. A chunk that fails to
// score gets models.NeutralScore; the others are unaffected.
func (s *Scorer) Score(ctx context.Context, chunks []models.Chunk, embeddings [][]float32, idx *index.Index) []float64 {
	scores := make([]float64, len(chunks))
	if len(embeddings) != len(chunks) || idx == nil || idx.Len() != len(chunks) {
		log.Error().Int("chunks", len(chunks)).Int("embeddings", len(embeddings)).
			Msg("Index does not match chunks, using neutral scores")
		return neutralScores(len(chunks))
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i := range chunks {
		i := i
		g.Go(func() error {
			log.Debug().Msgf("Processing chunk %d/%d", i+1, len(chunks))
			r := s.scoreChunk(ctx, chunks, i, idx)
			if r.err != nil {
				log.Warn().Err(r.err).Int("chunk", i).Msg("Chunk scoring failed, using neutral score")
			} else {
				log.Debug().Int("chunk", i).Float64("novelty", r.score).Msg("Chunk scored")
			}
			scores[i] = r.resolve()
			return nil
		})
	}
	_ = g.Wait()
	return scores
}

func (s *Scorer) scoreChunk(ctx context.Context, chunks []models.Chunk, i int, idx *index.Index) (r result) {
	defer func() {
		if p := recover(); p != nil {
			r = result{err: fmt.Errorf("chunk %d: panic: %v", i, p)}
		}
	}()

	var before, after string
	if i > 0 {
		before = chunks[i-1].Text
	}
	if i < len(chunks)-1 {
		after = chunks[i+1].Text
	}

	synthCtx, cancel := withTimeout(ctx, s.opts.ProviderTimeout)
	description := s.synthesizer.Synthesize(synthCtx, chunks[i].Text, before, after)
	cancel()
	log.Debug().Int("chunk", i).Str("description", truncate(description, 100)).Msg("Synthesized description")

	embedCtx, cancel := withTimeout(ctx, s.opts.ProviderTimeout)
	vectors, err := s.embedder.Embed(embedCtx, []string{description})
	cancel()
	if err != nil {
		return result{err: fmt.Errorf("embed description: %w", err)}
	}
	if len(vectors) != 1 {
		return result{err: models.NewProviderError("embedding", "embed description",
			fmt.Errorf("received %d embeddings for 1 text", len(vectors)))}
	}

	k := min(s.opts.K, len(chunks))
	neighbors, err := NearestExcluding(idx, vectors[0], k, i)
	if err != nil {
		return result{err: err}
	}
	if len(neighbors) == 0 {
		return result{score: models.MaxNovelty}
	}

	distances := make([]float64, len(neighbors))
	for j, n := range neighbors {
		distances[j] = n.Distance
	}
	score, err := Transform(mean(distances), s.opts.Scale)
	if err != nil {
		return result{err: err}
	}
	return result{score: score}
}

// NearestExcluding queries the k nearest neighbours of v and drops the entry
// for position self, if present.
func NearestExcluding(idx *index.Index, v []float32, k, self int) ([]index.Neighbor, error) {
	hits, err := idx.Query(v, k)
	if err != nil {
		return nil, err
	}
	filtered := hits[:0]
	for _, h := range hits {
		if h.Index != self {
			filtered = append(filtered, h)
		}
	}
	return filtered, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func neutralScores(n int) []float64 {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = models.NeutralScore
	}
	return scores
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
