package novelty

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"document-novelty/internal/chunker"
	"document-novelty/internal/embedding"
	"document-novelty/internal/helper"
	"document-novelty/internal/index"
	"document-novelty/internal/models"
	"document-novelty/internal/synthesis"
)

// Analyzer runs the full pipeline: chunk, embed every chunk, build an index
// for the run, then score each chunk against it.
type Analyzer struct {
	embedder embedding.Provider
	scorer   *Scorer
	opts     Options
}

// NewAnalyzer creates an Analyzer. A nil synthesizer selects the fallback
// synthesizer.
func NewAnalyzer(embedder embedding.Provider, synthesizer PromptSynthesizer, opts ...Option) (*Analyzer, error) {
	if embedder == nil {
		return nil, errors.New("novelty: embedding provider is required")
	}
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := Transform(0, o.Scale); err != nil {
		return nil, err
	}
	o.sanitize()
	if synthesizer == nil {
		synthesizer = synthesis.NewFallback()
	}
	return &Analyzer{
		embedder: embedder,
		scorer:   NewScorer(embedder, synthesizer, o),
		opts:     o,
	}, nil
}

// Analyze chunks text and scores every chunk
func (a *Analyzer) Analyze(ctx context.Context, source, text string) (*models.Report, error) {
	chunks := chunker.ChunkText(text, a.opts.MinChunkWords, a.opts.MaxChunkWords)
	log.Info().Str("source", source).Int("chunks", len(chunks)).Msg("Created chunks from text")
	return a.AnalyzeChunks(ctx, source, chunks)
}

// AnalyzeChunks scores pre-built chunks. An empty input yields an empty
// report. When the corpus cannot be embedded or indexed, the returned report
// holds models.NeutralScore for every chunk and the error explains why.
func (a *Analyzer) AnalyzeChunks(ctx context.Context, source string, chunks []models.Chunk) (*models.Report, error) {
	runID, err := helper.GenerateUUID()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to generate run id")
	}
	if len(chunks) == 0 {
		log.Info().Str("run_id", runID).Msg(models.ErrEmptyInput.Error())
		return buildReport(runID, source, nil, nil, nil), nil
	}

	log.Info().Str("run_id", runID).Int("chunks", len(chunks)).Msg("Analyzing novelty")
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := a.embedCorpus(ctx, texts)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Error embedding chunks, using neutral scores")
		return buildReport(runID, source, chunks, neutralScores(len(chunks)), nil), fmt.Errorf("embed chunks: %w", err)
	}

	idx, err := index.Build(vectors)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Error building index, using neutral scores")
		return buildReport(runID, source, chunks, neutralScores(len(chunks)), nil), fmt.Errorf("build index: %w", err)
	}

	scores := a.scorer.Score(ctx, chunks, vectors, idx)
	report := buildReport(runID, source, chunks, scores, vectors)
	log.Info().Str("run_id", runID).Float64("average_novelty", report.Summary.AverageNovelty).Msg("Novelty analysis complete")
	return report, nil
}

// embedCorpus embeds all chunk texts in one provider call, retrying
// transient failures.
func (a *Analyzer) embedCorpus(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := retry.WithMaxRetries(uint64(a.opts.EmbedRetries), retry.NewExponential(a.opts.RetryBackoff))

	var vectors [][]float32
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := withTimeout(ctx, a.opts.ProviderTimeout)
		defer cancel()

		out, err := a.embedder.Embed(callCtx, texts)
		if err != nil {
			if errors.Is(err, models.ErrDimensionMismatch) {
				return err
			}
			log.Warn().Err(err).Msg("Embedding chunks failed")
			return retry.RetryableError(err)
		}
		if len(out) != len(texts) {
			return retry.RetryableError(models.NewProviderError("embedding", "embed chunks",
				fmt.Errorf("received %d embeddings for %d texts", len(out), len(texts))))
		}
		vectors = out
		return nil
	})
	return vectors, err
}

func buildReport(runID, source string, chunks []models.Chunk, scores []float64, vectors [][]float32) *models.Report {
	scored := make([]models.ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = models.ScoredChunk{
			ChunkIndex:   c.Index,
			Text:         c.Text,
			WordCount:    c.WordCount,
			NoveltyScore: scores[i],
		}
	}
	return &models.Report{
		RunID:      runID,
		Source:     source,
		Chunks:     scored,
		Summary:    models.Summarize(scored),
		Embeddings: vectors,
	}
}
