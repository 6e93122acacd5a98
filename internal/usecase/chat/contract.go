package chat

import (
	"context"

	"github.com/hexwave/ragchat/internal/domain"
)

// SessionStore provides bounded conversation history per session.
type SessionStore interface {
	History(sessionID string) []domain.Turn
	Append(sessionID string, role domain.Role, content string) error
}

// Retriever resolves a query into a formatted context block. An empty
// string means no context is available.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) string
}
