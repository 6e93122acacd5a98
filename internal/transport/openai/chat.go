package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hexwave/ragchat/internal/domain"
	"github.com/hexwave/ragchat/internal/metrics"
)

var _ domain.Completer = (*Completer)(nil)

// Completer streams chat completions from the OpenAI-compatible API.
type Completer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewCompleter creates an OpenAI-compatible chat completion provider.
func NewCompleter(cfg *Config) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Completer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// StreamCompletion implements domain.Completer.
func (c *Completer) StreamCompletion(
	ctx context.Context, messages []domain.Message,
) (domain.CompletionStream, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Stream:   true,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return nil, wrapCompletionError(err)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.model, "success").Inc()
	return &completionStream{inner: stream}, nil
}

// completionStream adapts the SDK stream to domain.CompletionStream.
type completionStream struct {
	inner *openai.ChatCompletionStream
}

// Recv returns the next non-empty text delta, io.EOF at end of stream.
func (s *completionStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", wrapCompletionError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *completionStream) Close() error {
	if err := s.inner.Close(); err != nil {
		return fmt.Errorf("close completion stream: %w", err)
	}
	return nil
}

// wrapCompletionError maps SDK errors onto domain.ErrCompletionProviderError.
func wrapCompletionError(err error) error {
	wrap := domain.ErrCompletionProviderError

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	return fmt.Errorf("completion request failed: %v: %w", err, wrap)
}
