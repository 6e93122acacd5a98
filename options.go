package ragchat

import (
	"context"

	"go.uber.org/zap"
)

// Message is a chat completion input message.
type Message struct {
	Role    string
	Content string
}

// CompletionStream yields reply deltas. Recv returns io.EOF at end of stream.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// Embedder vectorizes text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is an optional upgrade of Embedder. When the provider
// implements it, indexing embeds chunks in batches; otherwise each chunk is
// embedded one query at a time. EmbedBatch must return one vector per input,
// position i corresponding to texts[i].
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer streams chat completions for the assembled messages.
type Completer interface {
	StreamCompletion(ctx context.Context, messages []Message) (CompletionStream, error)
}

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	openAIKey      string
	openAIBaseURL  string
	chatModel      string
	embeddingModel string
	dimensions     int

	embedder  Embedder
	completer Completer

	chunkSize    int
	chunkOverlap int
	batchSize    int
	topK         int
	maxTurns     int

	logger *zap.Logger
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		chatModel:      "gpt-4o-mini",
		embeddingModel: "text-embedding-3-small",
		chunkSize:      800,
		chunkOverlap:   200,
		batchSize:      100,
		topK:           3,
		maxTurns:       20,
		logger:         zap.NewNop(),
	}
}

// WithOpenAI configures OpenAI-compatible embedding and completion
// providers. baseURL may be empty for the default endpoint.
func WithOpenAI(apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAIKey = apiKey
		c.openAIBaseURL = baseURL
	})
}

// WithModels overrides the chat and embedding model names used by WithOpenAI.
func WithModels(chatModel, embeddingModel string) Option {
	return optionFunc(func(c *clientConfig) {
		if chatModel != "" {
			c.chatModel = chatModel
		}
		if embeddingModel != "" {
			c.embeddingModel = embeddingModel
		}
	})
}

// WithVectorDimensions requests reduced-dimension embeddings from the
// provider. 0 keeps the model default.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithEmbedder sets a custom embedding provider, replacing WithOpenAI for
// vectorization.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter sets a custom completion provider, replacing WithOpenAI for
// chat replies.
func WithCompleter(p Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = p
	})
}

// WithChunking sets the chunk window size and overlap in characters.
// Defaults: 800 and 200.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithBatchSize caps how many chunks are embedded per provider call.
// Default: 100.
func WithBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = size
	})
}

// WithTopK sets how many chunks retrieval returns. Default: 3.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithMaxTurns bounds the per-session conversation memory. Default: 20.
func WithMaxTurns(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxTurns = n
	})
}

// WithLogger enables structured logging for client operations.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	})
}
