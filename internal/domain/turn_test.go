package domain

import (
	"errors"
	"testing"
)

func TestNewTurn_Valid(t *testing.T) {
	turn, err := NewTurn(RoleUser, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.Role() != RoleUser {
		t.Errorf("role = %q, want %q", turn.Role(), RoleUser)
	}
	if turn.Content() != "hello" {
		t.Errorf("content = %q, want %q", turn.Content(), "hello")
	}
}

func TestNewTurn_UnknownRole(t *testing.T) {
	_, err := NewTurn(Role("system"), "hello")
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestNewTurn_EmptyContent(t *testing.T) {
	_, err := NewTurn(RoleAssistant, "")
	if err == nil {
		t.Fatal("expected error for empty content")
	}
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}
