// Package retrieve ranks stored corpus chunks against a query embedding and
// formats the best matches into a single context block.
package retrieve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hexwave/ragchat/internal/domain"
	"github.com/hexwave/ragchat/internal/metrics"
)

// DefaultTopK is the number of passages returned when the caller does not
// override it.
const DefaultTopK = 3

// Separator joins formatted passages in the context block.
const Separator = "\n\n---\n\n"

// Service retrieves context passages by cosine similarity over a linear scan
// of the embedding store. O(N*D) per query; fine while the corpus stays in
// the low thousands of chunks, and the Retrieve contract is the stable
// surface if an index ever replaces the scan.
type Service struct {
	store  ChunkSource
	embed  domain.Embedder
	topK   int
	logger *zap.Logger
}

// New creates a retrieval service.
func New(store ChunkSource, embed domain.Embedder, logger *zap.Logger) *Service {
	return &Service{store: store, embed: embed, topK: DefaultTopK, logger: logger}
}

// WithTopK configures the default number of passages returned.
func (s *Service) WithTopK(k int) *Service {
	if k > 0 {
		s.topK = k
	}
	return s
}

// Retrieve embeds the query and returns the topK most similar passages as a
// formatted context block, each prefixed by its source. Retrieval failures
// degrade to an empty string so the chat flow continues without context.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) string {
	if topK <= 0 {
		topK = s.topK
	}

	ranked, err := s.rank(ctx, query, topK)
	if err != nil {
		s.logger.Warn("retrieval degraded to empty context", zap.Error(err))
		metrics.RetrievalChunksReturned.Observe(0)
		return ""
	}
	metrics.RetrievalChunksReturned.Observe(float64(len(ranked)))

	parts := make([]string, len(ranked))
	for i, m := range ranked {
		parts[i] = fmt.Sprintf("[%s]\n%s", m.chunk.Source(), m.chunk.Text())
	}
	return strings.Join(parts, Separator)
}

type match struct {
	chunk domain.EmbeddedChunk
	score float64
	order int
}

// rank embeds the query and scores every stored chunk. Stable sort keeps
// store order for tied scores, so results are reproducible.
func (s *Service) rank(ctx context.Context, query string, topK int) ([]match, error) {
	if !s.store.Ready() {
		return nil, domain.ErrStoreNotReady
	}
	chunks := s.store.Chunks()
	if len(chunks) == 0 {
		return nil, fmt.Errorf("embedding store is empty: %w", domain.ErrStoreNotReady)
	}

	res, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches := make([]match, len(chunks))
	for i, c := range chunks {
		matches[i] = match{
			chunk: c,
			score: domain.Cosine(res.Embedding, c.Vector()),
			order: i,
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}
