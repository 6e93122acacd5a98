package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/hexwave/ragchat/internal/domain"
	"github.com/hexwave/ragchat/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterChatMetrics()
	os.Exit(m.Run())
}

// embeddingData mirrors one entry of the OpenAI-compatible embedding response.
type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func embeddingServer(t *testing.T, respond func(r *http.Request) embeddingResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(respond(r))
	}))
}

func TestEmbedder_Embed(t *testing.T) {
	expectedVec := []float32{0.1, 0.2, 0.3, 0.4}

	server := embeddingServer(t, func(r *http.Request) embeddingResponse {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		resp := embeddingResponse{Object: "list", Model: "test-model"}
		resp.Data = []embeddingData{{Object: "embedding", Embedding: expectedVec, Index: 0}}
		resp.Usage.PromptTokens = 10
		resp.Usage.TotalTokens = 10
		return resp
	})
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})

	result, err := emb.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(result.Embedding) != len(expectedVec) {
		t.Fatalf("expected %d dimensions, got %d", len(expectedVec), len(result.Embedding))
	}
	for i, v := range result.Embedding {
		if v != expectedVec[i] {
			t.Errorf("vec[%d] = %f, expected %f", i, v, expectedVec[i])
		}
	}
	if result.TotalTokens != 10 {
		t.Errorf("total tokens = %d, want 10", result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbedReordersByIndex(t *testing.T) {
	server := embeddingServer(t, func(_ *http.Request) embeddingResponse {
		resp := embeddingResponse{Object: "list", Model: "test-model"}
		// Deliberately out of order: the embedder must zip by index.
		resp.Data = []embeddingData{
			{Object: "embedding", Embedding: []float32{2}, Index: 1},
			{Object: "embedding", Embedding: []float32{0}, Index: 0},
			{Object: "embedding", Embedding: []float32{4}, Index: 2},
		}
		return resp
	})
	defer server.Close()

	emb := NewEmbedder(&Config{APIKey: "k", BaseURL: server.URL, Model: "test-model", Logger: zap.NewNop()})

	res, err := emb.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}
	for i, want := range []float32{0, 2, 4} {
		if res.Embeddings[i][0] != want {
			t.Errorf("embedding[%d] = %f, want %f", i, res.Embeddings[i][0], want)
		}
	}
}

func TestEmbedder_BatchEmbedCountMismatch(t *testing.T) {
	server := embeddingServer(t, func(_ *http.Request) embeddingResponse {
		resp := embeddingResponse{Object: "list", Model: "test-model"}
		resp.Data = []embeddingData{{Object: "embedding", Embedding: []float32{1}, Index: 0}}
		return resp
	})
	defer server.Close()

	emb := NewEmbedder(&Config{APIKey: "k", BaseURL: server.URL, Model: "test-model", Logger: zap.NewNop()})

	_, err := emb.BatchEmbed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error for count mismatch")
	}
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_BatchEmbedEmptyInput(t *testing.T) {
	emb := NewEmbedder(&Config{APIKey: "k", Model: "test-model", Logger: zap.NewNop()})

	res, err := emb.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 0 {
		t.Errorf("expected no embeddings, got %d", len(res.Embeddings))
	}
}

func TestEmbedder_APIErrorWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail": "quota exhausted"}`))
	}))
	defer server.Close()

	emb := NewEmbedder(&Config{APIKey: "k", BaseURL: server.URL, Model: "test-model", Logger: zap.NewNop()})

	_, err := emb.Embed(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}
}
