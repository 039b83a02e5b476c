package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-novelty/internal/config"
	"document-novelty/internal/helper"
	"document-novelty/internal/models"
)

// metadata keys stored with every archived chunk
const (
	metaRunID        = "run_id"
	metaSource       = "source"
	metaChunkIndex   = "chunk_index"
	metaWordCount    = "word_count"
	metaNoveltyScore = "novelty_score"
	metaBand         = "band"
)

// ArchivedChunk is a scored chunk found in the archive
type ArchivedChunk struct {
	ID           string  `json:"id"`
	RunID        string  `json:"run_id"`
	Source       string  `json:"source,omitempty"`
	ChunkIndex   int     `json:"chunk_index"`
	WordCount    int     `json:"word_count"`
	Text         string  `json:"text"`
	NoveltyScore float64 `json:"novelty_score"`
	Similarity   float32 `json:"similarity"`
}

// VectorDBManager keeps scored chunks of past runs in a chromem-go collection
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	inMemory      bool
	dbPath        string
	compress      bool
	encryptionKey string
	filePath      string
}

// NewVectorDBManager opens the archive described by cfg
func NewVectorDBManager(cfg *config.ArchiveConfig) (*VectorDBManager, error) {
	var db *chromem.DB
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(cfg.Path); err != nil {
			return nil, err
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		inMemory:      cfg.InMemory,
		dbPath:        cfg.Path,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
		filePath:      filepath.Join(cfg.Path, cfg.Collection+".chromem"),
	}
	if _, err := m.GetOrCreateCollection(cfg.Collection); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	// embeddings are always supplied by the caller, so no embedding func
	c, err := m.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Count returns the number of archived chunks
func (m *VectorDBManager) Count() int {
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}

// Store adds report to the archive. An in-memory archive is loaded from its
// export file first and written back afterwards, so earlier runs are kept.
func (m *VectorDBManager) Store(ctx context.Context, report *models.Report) error {
	if !m.inMemory {
		return m.ArchiveReport(ctx, report)
	}
	if err := m.Import(ctx); err != nil {
		return err
	}
	if err := m.ArchiveReport(ctx, report); err != nil {
		return err
	}
	return m.Export(ctx)
}

// ArchiveReport stores every chunk of a successful run with its embedding
func (m *VectorDBManager) ArchiveReport(ctx context.Context, report *models.Report) error {
	if report == nil || len(report.Chunks) == 0 {
		return nil
	}
	if len(report.Embeddings) != len(report.Chunks) {
		return fmt.Errorf("report %s has %d embeddings for %d chunks", report.RunID, len(report.Embeddings), len(report.Chunks))
	}

	docs := make([]chromem.Document, 0, len(report.Chunks))
	for i, c := range report.Chunks {
		// chromem normalises embeddings, a zero vector would turn into NaN
		if zeroVector(report.Embeddings[i]) {
			log.Warn().Str("run_id", report.RunID).Int("chunk", c.ChunkIndex).Msg("Skipping chunk with zero embedding")
			continue
		}
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%s-%d", report.RunID, c.ChunkIndex),
			Content: c.Text,
			Metadata: map[string]string{
				metaRunID:        report.RunID,
				metaSource:       report.Source,
				metaChunkIndex:   strconv.Itoa(c.ChunkIndex),
				metaWordCount:    strconv.Itoa(c.WordCount),
				metaNoveltyScore: strconv.FormatFloat(c.NoveltyScore, 'f', -1, 64),
				metaBand:         string(models.Band(c.NoveltyScore)),
			},
			Embedding: report.Embeddings[i],
		})
	}
	if len(docs) == 0 {
		return nil
	}

	log.Info().Str("run_id", report.RunID).Msgf("Adding %d chunks to archive", len(docs))
	return m.CreateDocs(ctx, docs)
}

// add multiple documents
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	if m.collection == nil {
		return errors.New("collection is required")
	}
	err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns up to n archived chunks closest to queryEmbedding
func (m *VectorDBManager) Search(ctx context.Context, queryEmbedding []float32, n int) ([]ArchivedChunk, error) {
	// chromem rejects more results than documents
	n = min(n, m.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := m.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       n,
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]ArchivedChunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, toArchivedChunk(r))
	}
	return chunks, nil
}

func (m *VectorDBManager) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	// exit if query or embedding is not provided
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}
	if m.collection == nil {
		return nil, errors.New("collection is required")
	}

	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

func zeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func toArchivedChunk(r chromem.Result) ArchivedChunk {
	chunk := ArchivedChunk{
		ID:         r.ID,
		RunID:      r.Metadata[metaRunID],
		Source:     r.Metadata[metaSource],
		Text:       r.Content,
		Similarity: r.Similarity,
	}
	if sim := float64(r.Similarity); math.IsNaN(sim) || math.IsInf(sim, 0) {
		chunk.Similarity = 0
	}
	var err error
	if chunk.ChunkIndex, err = strconv.Atoi(r.Metadata[metaChunkIndex]); err != nil {
		log.Warn().Str("id", r.ID).Msg("Archived chunk has no chunk index")
	}
	if chunk.WordCount, err = strconv.Atoi(r.Metadata[metaWordCount]); err != nil {
		log.Warn().Str("id", r.ID).Msg("Archived chunk has no word count")
	}
	if chunk.NoveltyScore, err = strconv.ParseFloat(r.Metadata[metaNoveltyScore], 64); err != nil {
		log.Warn().Str("id", r.ID).Msg("Archived chunk has no novelty score")
	}
	return chunk
}

// delete collection
func (m *VectorDBManager) DeleteCollection() error {
	if m.collection == nil {
		return errors.New("collection is required")
	}
	err := m.db.DeleteCollection(m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	m.collection = nil
	return nil
}

// export to file, encrypted when an encryption key is configured
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}
	if err := helper.CreateFolder(m.dbPath); err != nil {
		return err
	}

	log.Debug().Msgf("Collection name: %s", m.collection.Name)
	log.Debug().Msgf("File path: %s", m.filePath)
	log.Debug().Msgf("Compress: %t", m.compress)
	err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// import from file written by Export. A missing file leaves the collection
// unchanged, so the first run of an in-memory archive starts empty.
func (m *VectorDBManager) Import(ctx context.Context) error {
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}
	if _, err := os.Stat(m.filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("file", m.filePath).Msg("No exported archive to import")
			return nil
		}
		return fmt.Errorf("failed to import database: %w", err)
	}
	name := m.collection.Name
	err := m.db.ImportFromFile(m.filePath, m.encryptionKey, name)
	if err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	// the import replaces the collection object
	_, err = m.GetOrCreateCollection(name)
	return err
}
