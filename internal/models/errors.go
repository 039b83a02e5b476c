package models

import (
	"errors"
	"fmt"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmptyInput marks a run with nothing to analyse. It is never returned
	// from an analysis; an empty report is returned instead.
	ErrEmptyInput = errors.New("no chunks to analyze")
)

// ProviderError wraps a failure of an external embedding or synthesis provider
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(provider, op string, err error) error {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// IsProviderError reports whether err came from an external provider
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
