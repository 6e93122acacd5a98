// Package index holds the populate-once embedding store: corpus documents
// are chunked, embedded in batches, and cached in memory for the rest of
// the process lifetime.
package index

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hexwave/ragchat/internal/chunker"
	"github.com/hexwave/ragchat/internal/domain"
	"github.com/hexwave/ragchat/internal/metrics"
)

// DefaultBatchSize bounds texts per embedding call to respect provider
// request-size limits.
const DefaultBatchSize = 100

// Service chunks and embeds a document corpus exactly once and serves the
// resulting collection. The collection is immutable after initialization.
type Service struct {
	embed        domain.BatchEmbedder
	chunkSize    int
	chunkOverlap int
	batchSize    int
	logger       *zap.Logger

	// initMu serializes initializers: concurrent callers block until the
	// single embedding run finishes, then observe its outcome.
	initMu sync.Mutex

	mu     sync.RWMutex
	chunks []domain.EmbeddedChunk
	ready  bool
}

// New creates an embedding store service.
func New(embed domain.BatchEmbedder, chunkSize, chunkOverlap int, logger *zap.Logger) *Service {
	return &Service{
		embed:        embed,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		batchSize:    DefaultBatchSize,
		logger:       logger,
	}
}

// WithBatchSize configures texts per embedding call.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// Initialize chunks every document, embeds the chunk texts in batches, and
// caches the resulting collection. Idempotent: a call while already
// populated returns immediately. On failure nothing is cached and a later
// call retries from scratch.
func (s *Service) Initialize(ctx context.Context, docs []Document) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.Ready() {
		return nil
	}

	chunks, err := s.chunkAll(docs)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		s.logger.Warn("corpus produced no chunks, store will serve empty context")
	}

	embedded, tokens, err := s.embedAll(ctx, chunks)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.chunks = embedded
	s.ready = true
	s.mu.Unlock()

	metrics.CorpusChunksLoaded.Set(float64(len(embedded)))
	s.logger.Info("embedding store initialized",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(embedded)),
		zap.Int("embedding_tokens", tokens),
	)
	return nil
}

// Ready reports whether the store has been populated.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Chunks returns the cached collection. Callers must not mutate it.
func (s *Service) Chunks() []domain.EmbeddedChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks
}

// Count returns the number of cached chunks.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// chunkAll splits every document in corpus order.
func (s *Service) chunkAll(docs []Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, doc := range docs {
		windows, err := chunker.Split(doc.Text, s.chunkSize, s.chunkOverlap)
		if err != nil {
			return nil, fmt.Errorf("chunk document %s: %w", doc.Source, err)
		}
		for _, w := range windows {
			chunks = append(chunks, domain.NewChunk(w, doc.Source))
		}
	}
	return chunks, nil
}

// embedAll embeds chunk texts in batches and zips each returned vector back
// to its chunk by positional index. The ordering correspondence between a
// batch's texts and its vectors is load-bearing.
func (s *Service) embedAll(ctx context.Context, chunks []domain.Chunk) ([]domain.EmbeddedChunk, int, error) {
	embedded := make([]domain.EmbeddedChunk, 0, len(chunks))
	var totalTokens int

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text()
		}

		res, err := s.embed.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, 0, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(res.Embeddings) != len(batch) {
			return nil, 0, fmt.Errorf(
				"embed batch [%d:%d]: got %d vectors for %d texts: %w",
				start, end, len(res.Embeddings), len(batch), domain.ErrEmbeddingProviderError,
			)
		}

		for i, c := range batch {
			embedded = append(embedded, domain.NewEmbeddedChunk(c, res.Embeddings[i]))
		}
		totalTokens += res.TotalTokens
	}

	return embedded, totalTokens, nil
}
