package chi

import "github.com/hexwave/ragchat/internal/domain"

// SessionManager exposes the session operations the API surfaces directly.
type SessionManager interface {
	History(id string) []domain.Turn
	Clear(id string)
}

// RateLimiter gates requests per client key.
type RateLimiter interface {
	IsLimited(key string) bool
}
