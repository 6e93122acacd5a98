// Package session holds per-conversation turn history in process memory.
// History is bounded and volatile: the oldest turns are evicted first and
// everything is lost on restart. Idle sessions are never expired; the clear
// operation and process restart are the only eviction paths.
package session

import (
	"fmt"
	"sync"

	"github.com/hexwave/ragchat/internal/domain"
)

// DefaultMaxTurns bounds the number of turns retained per session.
const DefaultMaxTurns = 20

// Store is a concurrent map of session id to bounded turn history. Sessions
// are created lazily on first reference; any string, including the empty
// string, is a valid distinct key. Operations on one session never block
// another.
type Store struct {
	maxTurns int

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu    sync.Mutex
	turns []domain.Turn
}

// NewStore creates a session store. maxTurns <= 0 selects DefaultMaxTurns.
func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		maxTurns: maxTurns,
		sessions: make(map[string]*session),
	}
}

// History returns the session's turns in append order, creating an empty
// session if the id is unseen. The returned slice is a copy.
func (s *Store) History(id string) []domain.Turn {
	sess := s.getOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]domain.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// Append adds a turn to the session, evicting from the front once the bound
// is exceeded. Appends to one session are observed in program order.
func (s *Store) Append(id string, role domain.Role, content string) error {
	turn, err := domain.NewTurn(role, content)
	if err != nil {
		return fmt.Errorf("append to session %q: %w", id, err)
	}

	sess := s.getOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.turns = append(sess.turns, turn)
	if excess := len(sess.turns) - s.maxTurns; excess > 0 {
		sess.turns = append([]domain.Turn(nil), sess.turns[excess:]...)
	}
	return nil
}

// Clear removes the session entirely.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// getOrCreate is an atomic get-or-insert: the double-checked write path
// avoids racing creators inserting two sessions for one id.
func (s *Store) getOrCreate(id string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[id]; ok {
		return sess
	}
	sess = &session{}
	s.sessions[id] = sess
	return sess
}
