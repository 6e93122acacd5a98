package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hexwave/ragchat/internal/domain"
	logpkg "github.com/hexwave/ragchat/internal/logger"
	chatuc "github.com/hexwave/ragchat/internal/usecase/chat"
	healthuc "github.com/hexwave/ragchat/internal/usecase/health"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest         = "bad_request"
	codeRateLimited        = "rate_limited"
	codeIndexNotReady      = "index_not_ready"
	codeEmbeddingProvider  = "embedding_provider_error"
	codeCompletionProvider = "completion_provider_error"
	codeInternalError      = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API for the chat backend. Handlers log through the
// request-scoped logger installed in the context by the logging middleware.
type Server struct {
	chat          *chatuc.Service
	health        *healthuc.Service
	sessions      SessionManager
	rateLimit     func(http.Handler) http.Handler
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	chat *chatuc.Service,
	health *healthuc.Service,
	sessions SessionManager,
) *Server {
	s := &Server{
		chat:     chat,
		health:   health,
		sessions: sessions,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrStoreNotReady, http.StatusServiceUnavailable, codeIndexNotReady),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, codeCompletionProvider),
	}
	return s
}

// WithRateLimit installs a per-client gate on the /api routes.
func (s *Server) WithRateLimit(mw func(http.Handler) http.Handler) *Server {
	s.rateLimit = mw
	return s
}

// RegisterRoutes mounts all API routes on the router. Health and metrics
// stay outside the rate-limited group.
func (s *Server) RegisterRoutes(r gochi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(api gochi.Router) {
		if s.rateLimit != nil {
			api.Use(s.rateLimit)
		}
		api.Post("/chat", s.handleChat)
		api.Post("/chat/stream", s.handleChatStream)
		api.Get("/sessions/{sessionID}/history", s.handleHistory)
		api.Delete("/sessions/{sessionID}", s.handleClearSession)
	})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

type turnResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type historyResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []turnResponse `json:"turns"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	reply, err := s.chat.Respond(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: req.SessionID,
		Reply:     reply,
	})
}

// handleChatStream handles POST /api/chat/stream as server-sent events:
// one "chunk" event per completion delta, then a terminal "done" event.
// Errors after the stream opened are reported as an "error" event.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	started := false
	err := s.chat.Stream(r.Context(), req.SessionID, req.Message, func(delta string) error {
		select {
		case <-r.Context().Done():
			return r.Context().Err()
		default:
		}
		if err := writeSSE(w, "chunk", map[string]string{"content": delta}); err != nil {
			return err
		}
		started = true
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !started {
			s.handleDomainError(w, r, err)
			return
		}
		logpkg.FromContext(r.Context()).Warn("chat stream aborted", zap.Error(err))
		_ = writeSSE(w, "error", errorResponse{
			Code:    streamErrorCode(err),
			Message: safeDomainMessage(err),
		})
		flusher.Flush()
		return
	}

	_ = writeSSE(w, "done", map[string]string{"session_id": req.SessionID})
	flusher.Flush()
}

// handleHistory handles GET /api/sessions/{sessionID}/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := gochi.URLParam(r, "sessionID")

	turns := s.sessions.History(sessionID)
	items := make([]turnResponse, len(turns))
	for i, t := range turns {
		items[i] = turnResponse{
			Role:    string(t.Role()),
			Content: t.Content(),
		}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: sessionID,
		Turns:     items,
	})
}

// handleClearSession handles DELETE /api/sessions/{sessionID}.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(gochi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// handleMetrics handles GET /metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return chatRequest{}, false
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "session_id is required")
		return chatRequest{}, false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "message is required")
		return chatRequest{}, false
	}
	return req, true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrRateLimited,
		domain.ErrStoreNotReady,
		domain.ErrEmbeddingProviderError,
		domain.ErrCompletionProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func streamErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrCompletionProviderError):
		return codeCompletionProvider
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return codeEmbeddingProvider
	default:
		return codeInternalError
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	return nil
}
