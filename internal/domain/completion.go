package domain

import "context"

// Message is one prompt entry sent to the completion provider. Unlike Turn,
// prompt messages may carry the system role.
type Message struct {
	Role    string
	Content string
}

// Prompt message roles.
const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Completer produces a streamed chat completion for an assembled prompt.
type Completer interface {
	StreamCompletion(ctx context.Context, messages []Message) (CompletionStream, error)
}

// CompletionStream yields completion text increments. Recv returns io.EOF
// when the stream ends; Close releases the underlying connection and is safe
// to call after an error.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}
