package ragchat

import (
	"context"
	"errors"
	"fmt"

	"github.com/hexwave/ragchat/internal/corpus"
	"github.com/hexwave/ragchat/internal/domain"
	"github.com/hexwave/ragchat/internal/metrics"
	"github.com/hexwave/ragchat/internal/repository/session"
	openaiTransport "github.com/hexwave/ragchat/internal/transport/openai"
	chatuc "github.com/hexwave/ragchat/internal/usecase/chat"
	indexuc "github.com/hexwave/ragchat/internal/usecase/index"
	retrieveuc "github.com/hexwave/ragchat/internal/usecase/retrieve"
)

// Document is a corpus entry to index.
type Document struct {
	Source string
	Text   string
}

// Turn is one recorded message of a conversation.
type Turn struct {
	Role    string
	Content string
}

// Client is the embedded ragchat entry point: the full retrieval and chat
// pipeline without the HTTP server.
type Client struct {
	index    *indexuc.Service
	retrieve *retrieveuc.Service
	chat     *chatuc.Service
	sessions *session.Store
}

// New creates a ragchat Client. A provider is required: either WithOpenAI
// or the WithEmbedder/WithCompleter pair.
func New(opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	metrics.RegisterChatMetrics()

	batchEmb, queryEmb, completer, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}

	indexSvc := indexuc.New(batchEmb, cfg.chunkSize, cfg.chunkOverlap, cfg.logger).
		WithBatchSize(cfg.batchSize)
	retrieveSvc := retrieveuc.New(indexSvc, queryEmb, cfg.logger).
		WithTopK(cfg.topK)
	sessions := session.NewStore(cfg.maxTurns)
	chatSvc := chatuc.New(sessions, retrieveSvc, completer, cfg.logger)

	return &Client{
		index:    indexSvc,
		retrieve: retrieveSvc,
		chat:     chatSvc,
		sessions: sessions,
	}, nil
}

func buildProviders(cfg *clientConfig) (domain.BatchEmbedder, domain.Embedder, domain.Completer, error) {
	var batchEmb domain.BatchEmbedder
	var queryEmb domain.Embedder
	var completer domain.Completer

	if cfg.openAIKey != "" {
		e := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.openAIKey,
			BaseURL:    cfg.openAIBaseURL,
			Model:      cfg.embeddingModel,
			Dimensions: cfg.dimensions,
			Logger:     cfg.logger,
		})
		batchEmb, queryEmb = e, e
		completer = openaiTransport.NewCompleter(&openaiTransport.Config{
			APIKey:  cfg.openAIKey,
			BaseURL: cfg.openAIBaseURL,
			Model:   cfg.chatModel,
			Logger:  cfg.logger,
		})
	}
	if cfg.embedder != nil {
		a := &embedderAdapter{inner: cfg.embedder}
		batchEmb, queryEmb = a, a
	}
	if cfg.completer != nil {
		completer = &completerAdapter{inner: cfg.completer}
	}

	if batchEmb == nil {
		return nil, nil, nil, errors.New("ragchat: embedder required (use WithOpenAI or WithEmbedder)")
	}
	if completer == nil {
		return nil, nil, nil, errors.New("ragchat: completer required (use WithOpenAI or WithCompleter)")
	}
	return batchEmb, queryEmb, completer, nil
}

// Index chunks and embeds the documents, replacing the current index once
// all batches succeed.
func (c *Client) Index(ctx context.Context, docs []Document) error {
	indexDocs := make([]indexuc.Document, len(docs))
	for i, d := range docs {
		indexDocs[i] = indexuc.Document{Source: d.Source, Text: d.Text}
	}
	if err := c.index.Initialize(ctx, indexDocs); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	return nil
}

// IndexDir loads .txt and .md files from dir and indexes them.
func (c *Client) IndexDir(ctx context.Context, dir string) error {
	loaded, err := corpus.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("index dir: %w", err)
	}
	docs := make([]Document, len(loaded))
	for i, d := range loaded {
		docs[i] = Document{Source: d.Source, Text: d.Text}
	}
	return c.Index(ctx, docs)
}

// Ready reports whether the index has been built.
func (c *Client) Ready() bool { return c.index.Ready() }

// ChunkCount returns the number of indexed chunks.
func (c *Client) ChunkCount() int { return c.index.Count() }

// Chat runs one exchange and returns the full assistant reply.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (string, error) {
	reply, err := c.chat.Respond(ctx, sessionID, message)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return reply, nil
}

// ChatStream runs one exchange, invoking sink for every reply delta.
func (c *Client) ChatStream(ctx context.Context, sessionID, message string, sink func(delta string) error) error {
	if err := c.chat.Stream(ctx, sessionID, message, sink); err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}
	return nil
}

// Retrieve returns the formatted context block for a query, or "" when the
// index is not ready or nothing matches.
func (c *Client) Retrieve(ctx context.Context, query string, topK int) string {
	return c.retrieve.Retrieve(ctx, query, topK)
}

// History returns the recorded turns for a session.
func (c *Client) History(sessionID string) []Turn {
	turns := c.sessions.History(sessionID)
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = Turn{Role: string(t.Role()), Content: t.Content()}
	}
	return out
}

// ClearSession forgets a session entirely.
func (c *Client) ClearSession(sessionID string) {
	c.sessions.Clear(sessionID)
}

// embedderAdapter wraps the public Embedder to satisfy the internal contracts.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vec, err := a.inner.EmbedQuery(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

// BatchEmbed uses the provider's batch endpoint when available and falls
// back to per-text embedding for query-only providers.
func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	vecs, err := be.EmbedBatch(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}

// completerAdapter wraps the public Completer to satisfy the internal contract.
type completerAdapter struct {
	inner Completer
}

func (a *completerAdapter) StreamCompletion(
	ctx context.Context, messages []domain.Message,
) (domain.CompletionStream, error) {
	public := make([]Message, len(messages))
	for i, m := range messages {
		public[i] = Message{Role: m.Role, Content: m.Content}
	}
	stream, err := a.inner.StreamCompletion(ctx, public)
	if err != nil {
		return nil, fmt.Errorf("stream completion: %w", err)
	}
	return stream, nil
}
