package oracle

import (
	"context"
	"errors"
)

// Source issues verifiable randomness requests. Implementations return the
// request identifier the eventual fulfillment will carry so callers can key
// pending work on it.
type Source interface {
	RequestRandomWords(ctx context.Context, numWords uint32) ([32]byte, error)
}

// ErrNoWordCount indicates a request for zero random words.
var ErrNoWordCount = errors.New("oracle: numWords must be positive")
