package models

const (
	DefaultMinChunkWords = 100
	DefaultMaxChunkWords = 200
	DefaultNeighbors     = 5
	DefaultScale         = 2.0

	// NeutralScore is used for a chunk that could not be scored.
	NeutralScore = 0.5
	// MaxNovelty is used when a chunk has no comparable neighbours.
	MaxNovelty = 1.0

	ContextWindowChars = 200
	FallbackTokenLimit = 50
	FallbackPrefix     = "Write about: "
	NoContextMarker    = "[None]"

	HighNoveltyThreshold   = 0.7
	MediumNoveltyThreshold = 0.4
	LowNoveltyThreshold    = 0.2
)

var (
	SynthesisSystemPrompt = `You are an expert at analyzing text and creating prompts.
Given a piece of text and its surrounding context, generate a concise prompt that could
be used to regenerate that specific text. Focus on the key concepts, themes, and
information conveyed.`

	SynthesisUserTemplate = `Context before:
%s

Target text:
%s

Context after:
%s

Generate a concise prompt (2-3 sentences) that captures the essence of the target text
and could be used to regenerate it.`
)
