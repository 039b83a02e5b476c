package novelty

import (
	"time"

	"document-novelty/internal/models"
)

// Options tunes an analysis run
type Options struct {
	// K is the number of nearest neighbours averaged per chunk.
	K int
	// Scale controls how quickly distance saturates into novelty. It depends
	// on the embedding model.
	Scale float64
	// Workers bounds how many chunks are scored at once.
	Workers int
	// ProviderTimeout bounds each embedding or synthesis call. Zero disables it.
	ProviderTimeout time.Duration
	// EmbedRetries is the number of retries of the corpus embedding call.
	EmbedRetries int
	RetryBackoff time.Duration

	MinChunkWords int
	MaxChunkWords int
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		K:               models.DefaultNeighbors,
		Scale:           models.DefaultScale,
		Workers:         4,
		ProviderTimeout: 30 * time.Second,
		EmbedRetries:    2,
		RetryBackoff:    200 * time.Millisecond,
		MinChunkWords:   models.DefaultMinChunkWords,
		MaxChunkWords:   models.DefaultMaxChunkWords,
	}
}

func WithK(k int) Option {
	return func(o *Options) { o.K = k }
}

func WithScale(scale float64) Option {
	return func(o *Options) { o.Scale = scale }
}

func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

func WithProviderTimeout(d time.Duration) Option {
	return func(o *Options) { o.ProviderTimeout = d }
}

func WithEmbedRetries(retries int, backoff time.Duration) Option {
	return func(o *Options) {
		o.EmbedRetries = retries
		o.RetryBackoff = backoff
	}
}

func WithChunkBounds(minWords, maxWords int) Option {
	return func(o *Options) {
		o.MinChunkWords = minWords
		o.MaxChunkWords = maxWords
	}
}

func (o *Options) sanitize() {
	def := DefaultOptions()
	if o.K < 1 {
		o.K = def.K
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.EmbedRetries < 0 {
		o.EmbedRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = def.RetryBackoff
	}
}
