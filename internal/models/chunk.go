package models

// Chunk is an ordered, bounded-size unit of document text
type Chunk struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// ScoredChunk is one output record of an analysis run
type ScoredChunk struct {
	ChunkIndex   int     `json:"chunk_index"`
	Text         string  `json:"text"`
	WordCount    int     `json:"word_count"`
	NoveltyScore float64 `json:"novelty_score"`
}

// Summary holds aggregate statistics for a run
type Summary struct {
	TotalChunks    int     `json:"total_chunks"`
	AverageNovelty float64 `json:"average_novelty"`
	HighNovelty    int     `json:"high_novelty_chunks"`
	LowNovelty     int     `json:"low_novelty_chunks"`
}

// Report is the result of one analysis run
type Report struct {
	RunID   string        `json:"run_id"`
	Source  string        `json:"source,omitempty"`
	Chunks  []ScoredChunk `json:"chunks"`
	Summary Summary       `json:"summary"`

	// Embeddings holds the chunk embeddings of a successful run
	Embeddings [][]float32 `json:"-"`
}

// Scores returns the novelty scores in chunk order
func (r *Report) Scores() []float64 {
	scores := make([]float64, len(r.Chunks))
	for i, c := range r.Chunks {
		scores[i] = c.NoveltyScore
	}
	return scores
}

// NoveltyBand names the bucket a score falls into
type NoveltyBand string

const (
	BandHigh    NoveltyBand = "high"
	BandMedium  NoveltyBand = "medium"
	BandLow     NoveltyBand = "low"
	BandVeryLow NoveltyBand = "very_low"
)

func Band(score float64) NoveltyBand {
	switch {
	case score >= HighNoveltyThreshold:
		return BandHigh
	case score >= MediumNoveltyThreshold:
		return BandMedium
	case score >= LowNoveltyThreshold:
		return BandLow
	default:
		return BandVeryLow
	}
}

// Summarize computes run statistics from scored chunks
func Summarize(chunks []ScoredChunk) Summary {
	s := Summary{TotalChunks: len(chunks)}
	if len(chunks) == 0 {
		return s
	}
	var total float64
	for _, c := range chunks {
		total += c.NoveltyScore
		if c.NoveltyScore >= HighNoveltyThreshold {
			s.HighNovelty++
		}
		if c.NoveltyScore < LowNoveltyThreshold {
			s.LowNovelty++
		}
	}
	s.AverageNovelty = total / float64(len(chunks))
	return s
}
