package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paragraph(prefix string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(words, " ")
}

func document(paragraphs ...string) string {
	return strings.Join(paragraphs, "\n\n")
}

func TestChunkText(t *testing.T) {
	t.Run("ShouldReturnNoChunksForEmptyText", func(t *testing.T) {
		assert.Empty(t, ChunkText("", 100, 200))
		assert.Empty(t, ChunkText(" \n\n \t\n\n", 100, 200))
	})

	t.Run("ShouldFlushBeforeOverflowOnceMinimumIsMet", func(t *testing.T) {
		text := document(paragraph("a", 120), paragraph("b", 140), paragraph("c", 90))
		chunks := ChunkText(text, 100, 200)
		require.Len(t, chunks, 3)
		assert.Equal(t, 120, chunks[0].WordCount)
		assert.Equal(t, 140, chunks[1].WordCount)
		assert.Equal(t, 90, chunks[2].WordCount)
		assert.Equal(t, paragraph("a", 120), chunks[0].Text)
		assert.Equal(t, paragraph("c", 90), chunks[2].Text)
	})

	t.Run("ShouldMergeParagraphsThatFit", func(t *testing.T) {
		text := document(paragraph("a", 60), paragraph("b", 70), paragraph("c", 50))
		chunks := ChunkText(text, 100, 200)
		require.Len(t, chunks, 1)
		assert.Equal(t, 180, chunks[0].WordCount)
		assert.Equal(t, paragraph("a", 60)+" "+paragraph("b", 70)+" "+paragraph("c", 50), chunks[0].Text)
	})

	t.Run("ShouldForceMergeUndersizedAccumulator", func(t *testing.T) {
		text := document(paragraph("a", 50), paragraph("b", 180), paragraph("c", 30))
		chunks := ChunkText(text, 100, 200)
		require.Len(t, chunks, 2)
		assert.Equal(t, 230, chunks[0].WordCount)
		assert.Equal(t, 30, chunks[1].WordCount)
	})

	t.Run("ShouldKeepOversizedParagraphWhole", func(t *testing.T) {
		chunks := ChunkText(paragraph("x", 250), 100, 200)
		require.Len(t, chunks, 1)
		assert.Equal(t, 250, chunks[0].WordCount)
	})

	t.Run("ShouldAssignSequentialIndexes", func(t *testing.T) {
		text := document(paragraph("a", 150), paragraph("b", 150), paragraph("c", 150), paragraph("d", 60))
		chunks := ChunkText(text, 100, 200)
		require.Len(t, chunks, 4)
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
			assert.NotEmpty(t, c.Text)
			assert.GreaterOrEqual(t, c.WordCount, 1)
		}
	})

	t.Run("ShouldTreatWhitespaceOnlyLinesAsParagraphBreaks", func(t *testing.T) {
		text := "first para here\n   \t\nsecond para\n\n\n\nthird"
		chunks := ChunkText(text, 1, 2)
		require.Len(t, chunks, 3)
		assert.Equal(t, "first para here", chunks[0].Text)
		assert.Equal(t, "second para", chunks[1].Text)
		assert.Equal(t, "third", chunks[2].Text)
	})

	t.Run("ShouldCountWordsAcrossInnerNewlines", func(t *testing.T) {
		chunks := ChunkText("one two\nthree   four", 1, 10)
		require.Len(t, chunks, 1)
		assert.Equal(t, 4, chunks[0].WordCount)
		assert.Equal(t, "one two\nthree   four", chunks[0].Text)
	})

	t.Run("ShouldFallBackToDefaultBoundsWhenInvalid", func(t *testing.T) {
		text := document(paragraph("a", 120), paragraph("b", 140))
		assert.Equal(t, ChunkText(text, 100, 200), ChunkText(text, 0, -1))
		assert.Equal(t, ChunkText(text, 100, 200), ChunkText(text, 300, 200))
	})

	t.Run("ShouldBeDeterministic", func(t *testing.T) {
		text := document(paragraph("a", 30), paragraph("b", 90), paragraph("c", 140), paragraph("d", 75), paragraph("e", 5))
		first := ChunkText(text, 100, 200)
		second := ChunkText(text, 100, 200)
		assert.Equal(t, first, second)
	})
}

func TestChunkTextMinimumSize(t *testing.T) {
	sizes := []int{12, 40, 75, 230, 18, 90, 110, 5, 199, 201, 3, 64}
	paras := make([]string, len(sizes))
	total := 0
	for i, n := range sizes {
		paras[i] = paragraph(fmt.Sprintf("p%d_", i), n)
		total += n
	}
	chunks := ChunkText(document(paras...), 100, 200)
	require.NotEmpty(t, chunks)

	sum := 0
	for i, c := range chunks {
		sum += c.WordCount
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, c.WordCount, 100, "chunk %d", i)
		}
	}
	assert.Equal(t, total, sum)
}
