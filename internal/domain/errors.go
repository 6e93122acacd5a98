package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed or incomplete request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreNotReady signals that the embedding store has not been populated yet.
	ErrStoreNotReady = errors.New("embedding store not ready")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a chat completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
)
