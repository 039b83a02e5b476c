package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-novelty/internal/chromemdb"
	"document-novelty/internal/chunker"
	"document-novelty/internal/config"
	"document-novelty/internal/embedding"
	"document-novelty/internal/helper"
	"document-novelty/internal/models"
	"document-novelty/internal/novelty"
	"document-novelty/internal/parser"
	"document-novelty/internal/synthesis"
)

const (
	configFilePath = "./configs/config.yaml"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the document file")
	text := flag.String("text", "", "Text to analyze")
	minWords := flag.Int("min", 0, "Minimum words per chunk (overrides config)")
	maxWords := flag.Int("max", 0, "Maximum words per chunk (overrides config)")
	archive := flag.Bool("archive", false, "Store the scored chunks in the archive")
	query := flag.String("query", "", "Search the archive for chunks similar to the query")
	topN := flag.Int("n", 5, "Number of archive results")
	dryRun := flag.Bool("dry-run", false, "Dry run, only chunk the document")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if *minWords > 0 {
		cfg.Chunking.MinWords = *minWords
	}
	if *maxWords > 0 {
		cfg.Chunking.MaxWords = *maxWords
	}
	if *archive {
		cfg.Archive.Enabled = true
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	ctx := context.Background()

	if *query != "" {
		if *filePath != "" || *text != "" {
			log.Fatal().Msg("Please provide either a document using the -file or -text flag or a query using the -query flag, but not both")
		}
		searchArchive(ctx, cfg, *query, *topN)
		return
	}

	source, content := readInput(*filePath, *text)

	if *dryRun {
		chunks := chunker.ChunkText(content, cfg.Chunking.MinWords, cfg.Chunking.MaxWords)
		log.Info().Msgf("Created %d chunks", len(chunks))
		helper.PrettyPrint(chunks)
		return
	}

	analyzeDocument(ctx, cfg, source, content)
}

func readInput(filePath, text string) (string, string) {
	switch {
	case filePath != "" && text != "":
		log.Fatal().Msg("Please provide either -file or -text, but not both")
	case filePath != "":
		content, err := parser.ExtractText(filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Error parsing document")
		}
		return filepath.Base(filePath), content
	case text != "":
		return "", text
	}
	log.Fatal().Msg("Please provide a document using the -file flag, text using the -text flag or a query using the -query flag")
	return "", ""
}

func newEmbedder(cfg *config.Config) embedding.Provider {
	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	return embedder
}

func analyzeDocument(ctx context.Context, cfg *config.Config, source, content string) {
	analyzer, err := novelty.NewAnalyzer(newEmbedder(cfg), synthesis.FromConfig(cfg.Synthesis),
		novelty.WithK(cfg.Novelty.Neighbors),
		novelty.WithScale(cfg.Novelty.Scale),
		novelty.WithWorkers(cfg.Novelty.Workers),
		novelty.WithProviderTimeout(cfg.Novelty.Timeout()),
		novelty.WithEmbedRetries(cfg.Novelty.EmbedRetries, cfg.Novelty.RetryBackoff()),
		novelty.WithChunkBounds(cfg.Chunking.MinWords, cfg.Chunking.MaxWords),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating analyzer")
	}

	report, err := analyzer.Analyze(ctx, source, content)
	if report != nil {
		helper.PrettyPrint(report)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Novelty analysis failed, scores are neutral")
	}

	log.Info().
		Int("chunks", report.Summary.TotalChunks).
		Float64("average", report.Summary.AverageNovelty).
		Int("high", report.Summary.HighNovelty).
		Int("low", report.Summary.LowNovelty).
		Msg("Summary")

	if cfg.Archive.Enabled {
		archiveReport(ctx, cfg, report)
	}
}

func openArchive(cfg *config.Config) *chromemdb.VectorDBManager {
	db, err := chromemdb.NewVectorDBManager(&cfg.Archive)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating vector database manager")
	}
	return db
}

func archiveReport(ctx context.Context, cfg *config.Config, report *models.Report) {
	db := openArchive(cfg)
	if err := db.Store(ctx, report); err != nil {
		log.Fatal().Err(err).Msg("Error adding chunks to archive")
	}
	log.Info().Int("archived", db.Count()).Msg("Archive updated")
}

func searchArchive(ctx context.Context, cfg *config.Config, query string, n int) {
	db := openArchive(cfg)
	if cfg.Archive.InMemory {
		if err := db.Import(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error importing collection")
		}
	}

	vectors, err := newEmbedder(cfg).Embed(ctx, []string{query})
	if err != nil {
		log.Fatal().Err(err).Msg("Error generating embedding")
	}

	results, err := db.Search(ctx, vectors[0], n)
	if err != nil {
		log.Fatal().Err(err).Msg("Error searching archive")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msgf("Results: %d ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>", len(results))
	helper.PrettyPrint(results)
}
