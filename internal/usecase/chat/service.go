package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/hexwave/ragchat/internal/domain"
)

const systemPromptTemplate = `You are a helpful assistant. Ground your answers in the context below when it is relevant; otherwise answer from general knowledge and say so.

Context:
%s`

// noContextNotice replaces the context block when retrieval returns nothing.
const noContextNotice = "(no relevant context found)"

// Service orchestrates a chat exchange: it reads session history, retrieves
// context for the user message, streams a completion and writes both turns
// back to the session.
type Service struct {
	sessions  SessionStore
	retriever Retriever
	completer domain.Completer
	logger    *zap.Logger
}

// New creates a chat service.
func New(sessions SessionStore, retriever Retriever, completer domain.Completer, logger *zap.Logger) *Service {
	return &Service{
		sessions:  sessions,
		retriever: retriever,
		completer: completer,
		logger:    logger,
	}
}

// Respond runs a full exchange and returns the assembled assistant reply.
func (s *Service) Respond(ctx context.Context, sessionID, message string) (string, error) {
	var reply strings.Builder
	err := s.Stream(ctx, sessionID, message, func(delta string) error {
		reply.WriteString(delta)
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply.String(), nil
}

// Stream runs an exchange, invoking sink for every completion delta. The
// user turn is recorded before the completion starts; the assistant turn is
// recorded only after the stream ends cleanly. If the stream or the sink
// fails midway the partial assistant output is discarded.
func (s *Service) Stream(ctx context.Context, sessionID, message string, sink func(delta string) error) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("empty message: %w", domain.ErrInvalidRequest)
	}

	history := s.sessions.History(sessionID)
	contextBlock := s.retriever.Retrieve(ctx, message, 0)
	messages := buildMessages(contextBlock, history, message)

	if err := s.sessions.Append(sessionID, domain.RoleUser, message); err != nil {
		return fmt.Errorf("record user turn: %w", err)
	}

	stream, err := s.completer.StreamCompletion(ctx, messages)
	if err != nil {
		return fmt.Errorf("start completion: %w", err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("completion stream failed midway",
				zap.String("session_id", sessionID),
				zap.Int("partial_len", reply.Len()),
				zap.Error(err))
			return fmt.Errorf("stream completion: %w", err)
		}
		reply.WriteString(delta)
		if err := sink(delta); err != nil {
			s.logger.Debug("stream sink aborted, discarding partial reply",
				zap.String("session_id", sessionID),
				zap.Int("partial_len", reply.Len()))
			return fmt.Errorf("deliver completion delta: %w", err)
		}
	}

	if reply.Len() == 0 {
		// Empty completions are legal upstream but have no place in history.
		s.logger.Warn("provider returned an empty reply",
			zap.String("session_id", sessionID))
		return nil
	}
	if err := s.sessions.Append(sessionID, domain.RoleAssistant, reply.String()); err != nil {
		return fmt.Errorf("record assistant turn: %w", err)
	}

	s.logger.Debug("chat exchange complete",
		zap.String("session_id", sessionID),
		zap.Int("history_len", len(history)),
		zap.Int("reply_len", reply.Len()))

	return nil
}

// History exposes the recorded turns for a session.
func (s *Service) History(sessionID string) []domain.Turn {
	return s.sessions.History(sessionID)
}

// buildMessages assembles the provider message list: system prompt with the
// retrieved context, prior turns in order, then the current user message.
func buildMessages(contextBlock string, history []domain.Turn, message string) []domain.Message {
	if contextBlock == "" {
		contextBlock = noContextNotice
	}

	messages := make([]domain.Message, 0, len(history)+2)
	messages = append(messages, domain.Message{
		Role:    domain.MessageRoleSystem,
		Content: fmt.Sprintf(systemPromptTemplate, contextBlock),
	})
	for _, turn := range history {
		messages = append(messages, domain.Message{
			Role:    string(turn.Role()),
			Content: turn.Content(),
		})
	}
	return append(messages, domain.Message{
		Role:    domain.MessageRoleUser,
		Content: message,
	})
}
