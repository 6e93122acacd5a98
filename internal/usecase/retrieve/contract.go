package retrieve

import "github.com/hexwave/ragchat/internal/domain"

// ChunkSource exposes the embedded corpus collection.
type ChunkSource interface {
	Chunks() []domain.EmbeddedChunk
	Ready() bool
}
