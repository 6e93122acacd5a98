package domain

// Chunk is a contiguous slice of a source document. Chunks carry no identity
// beyond (source, offset order) and are never mutated after creation.
type Chunk struct {
	text   string
	source string
}

// NewChunk creates a Chunk.
func NewChunk(text, source string) Chunk {
	return Chunk{text: text, source: source}
}

// Text returns the chunk text.
func (c Chunk) Text() string { return c.text }

// Source returns the identifier of the originating document.
func (c Chunk) Source() string { return c.source }

// EmbeddedChunk pairs a Chunk with its embedding vector. All vectors held by
// one store share the dimensionality of the embedding model in use.
type EmbeddedChunk struct {
	Chunk
	vector []float32
}

// NewEmbeddedChunk creates an EmbeddedChunk.
func NewEmbeddedChunk(chunk Chunk, vector []float32) EmbeddedChunk {
	return EmbeddedChunk{Chunk: chunk, vector: vector}
}

// Vector returns the embedding vector.
func (c EmbeddedChunk) Vector() []float32 { return c.vector }
