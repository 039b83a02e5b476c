package chunker

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"document-novelty/internal/models"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// ChunkText splits text into ordered chunks of whole paragraphs whose word
// counts fall between minWords and maxWords. Paragraphs are never split, so a
// single paragraph longer than maxWords becomes its own chunk, and the last
// chunk of a document may hold fewer than minWords words.
func ChunkText(text string, minWords, maxWords int) []models.Chunk {
	if minWords < 1 || maxWords < minWords {
		log.Warn().Int("min_words", minWords).Int("max_words", maxWords).
			Msg("Invalid chunk bounds, using defaults")
		minWords = models.DefaultMinChunkWords
		maxWords = models.DefaultMaxChunkWords
	}

	var (
		chunks  []models.Chunk
		current []string
		count   int
	)

	flush := func() {
		chunks = append(chunks, models.Chunk{
			Index:     len(chunks),
			Text:      strings.Join(current, " "),
			WordCount: count,
		})
		current = nil
		count = 0
	}

	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		words := len(strings.Fields(para))

		switch {
		case count+words <= maxWords:
			current = append(current, para)
			count += words
		case count < minWords:
			// too small to stand alone, accept the overflow
			current = append(current, para)
			count += words
			if count >= minWords {
				flush()
			}
		default:
			flush()
			current = []string{para}
			count = words
		}
	}

	if len(current) > 0 {
		flush()
	}

	log.Debug().Int("chunks", len(chunks)).Msg("Chunked text")
	return chunks
}
