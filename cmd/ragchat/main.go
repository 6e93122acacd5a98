package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hexwave/ragchat/internal/config"
	"github.com/hexwave/ragchat/internal/corpus"
	logpkg "github.com/hexwave/ragchat/internal/logger"
	"github.com/hexwave/ragchat/internal/metrics"
	"github.com/hexwave/ragchat/internal/repository/ratelimit"
	"github.com/hexwave/ragchat/internal/repository/session"
	chiTransport "github.com/hexwave/ragchat/internal/transport/chi"
	openaiTransport "github.com/hexwave/ragchat/internal/transport/openai"
	chatuc "github.com/hexwave/ragchat/internal/usecase/chat"
	healthuc "github.com/hexwave/ragchat/internal/usecase/health"
	indexuc "github.com/hexwave/ragchat/internal/usecase/index"
	retrieveuc "github.com/hexwave/ragchat/internal/usecase/retrieve"
	"github.com/hexwave/ragchat/internal/version"
)

func main() {
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragchat API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("corpus_dir", cfg.Corpus.Dir),
		zap.String("chat_model", cfg.OpenAI.ChatModel),
		zap.String("embedding_model", cfg.OpenAI.EmbeddingModel),
	)

	// Register chat metrics explicitly (no init())
	metrics.RegisterChatMetrics()

	embedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.EmbeddingModel,
		Dimensions: cfg.OpenAI.Dimensions,
		Logger:     logger,
	})
	completer := openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.ChatModel,
		Logger:  logger,
	})

	indexSvc := indexuc.New(embedder, cfg.Corpus.ChunkSize, cfg.Corpus.ChunkOverlap, logger).
		WithBatchSize(cfg.Corpus.EmbedBatchSize)
	retrieveSvc := retrieveuc.New(indexSvc, embedder, logger).
		WithTopK(cfg.Corpus.TopK)

	sessions := session.NewStore(cfg.Session.MaxTurns)
	chatSvc := chatuc.New(sessions, retrieveSvc, completer, logger)
	healthSvc := healthuc.New(indexSvc, embedder)

	limiter := ratelimit.New(
		cfg.RateLimit.MaxRequests,
		time.Duration(cfg.RateLimit.WindowSec)*time.Second,
		logger,
	)
	window := time.Duration(cfg.RateLimit.WindowSec) * time.Second

	// Background work stops with the server.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go limiter.Run(bgCtx, time.Duration(cfg.RateLimit.SweepIntervalSec)*time.Second)
	go initializeIndex(bgCtx, indexSvc, cfg.Corpus.Dir, logger)

	server := chiTransport.NewServer(chatSvc, healthSvc, sessions).
		WithRateLimit(chiTransport.RateLimitMiddleware(limiter, window))

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(chiTransport.CORSMiddleware(cfg.HTTP.AllowedOrigins))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	bgCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// initializeIndex loads the corpus and embeds it. The server starts serving
// before this finishes; retrieval degrades to no context until the index is
// published and /health reports degraded.
func initializeIndex(ctx context.Context, svc *indexuc.Service, dir string, logger *zap.Logger) {
	docs, err := corpus.LoadDir(dir)
	if err != nil {
		logger.Error("Failed to load corpus", zap.String("dir", dir), zap.Error(err))
		return
	}

	indexDocs := make([]indexuc.Document, len(docs))
	for i, d := range docs {
		indexDocs[i] = indexuc.Document{Source: d.Source, Text: d.Text}
	}

	if err := svc.Initialize(ctx, indexDocs); err != nil {
		logger.Error("Corpus indexing failed", zap.Error(err))
		return
	}
	logger.Info("Corpus indexed", zap.Int("documents", len(docs)), zap.Int("chunks", svc.Count()))
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
