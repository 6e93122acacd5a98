package domain

import "fmt"

// Role identifies the originator of a conversation turn.
type Role string

const (
	// RoleUser marks a turn written by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by the model.
	RoleAssistant Role = "assistant"
)

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message of a conversation (immutable value object).
type Turn struct {
	role    Role
	content string
}

// NewTurn validates and creates a Turn.
func NewTurn(role Role, content string) (Turn, error) {
	if !role.IsValid() {
		return Turn{}, fmt.Errorf("unknown role %q: %w", role, ErrInvalidRequest)
	}
	if content == "" {
		return Turn{}, fmt.Errorf("turn content is required: %w", ErrInvalidRequest)
	}
	return Turn{role: role, content: content}, nil
}

// Role returns the turn originator.
func (t Turn) Role() Role { return t.role }

// Content returns the turn text.
func (t Turn) Content() string { return t.content }
