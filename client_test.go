package ragchat

import (
	"context"
	"io"
	"strings"
	"testing"
)

// lengthEmbedder encodes text length, so the closest chunk to a query is
// the one whose length matches best.
type lengthEmbedder struct{}

func (lengthEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (e lengthEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.EmbedQuery(context.Background(), t)
		out[i] = v
	}
	return out, nil
}

// queryOnlyEmbedder implements Embedder but not BatchEmbedder, so indexing
// must embed chunks one at a time.
type queryOnlyEmbedder struct {
	calls int
}

func (e *queryOnlyEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.calls++
	return []float32{float32(len(text)), 1}, nil
}

type scriptedCompleter struct {
	deltas []string
}

func (s scriptedCompleter) StreamCompletion(context.Context, []Message) (CompletionStream, error) {
	return &scriptedStream{deltas: s.deltas}, nil
}

type scriptedStream struct {
	deltas []string
	pos    int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos >= len(s.deltas) {
		return "", io.EOF
	}
	d := s.deltas[s.pos]
	s.pos++
	return d, nil
}

func (s *scriptedStream) Close() error { return nil }

func newTestClient(t *testing.T, deltas []string) *Client {
	t.Helper()
	c, err := New(
		WithEmbedder(lengthEmbedder{}),
		WithCompleter(scriptedCompleter{deltas: deltas}),
		WithChunking(40, 10),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNew_RequiresProviders(t *testing.T) {
	if _, err := New(); err == nil {
		t.Error("expected error without providers")
	}
	if _, err := New(WithEmbedder(lengthEmbedder{})); err == nil {
		t.Error("expected error without completer")
	}
	if _, err := New(WithCompleter(scriptedCompleter{})); err == nil {
		t.Error("expected error without embedder")
	}
}

func TestClient_IndexAndRetrieve(t *testing.T) {
	c := newTestClient(t, nil)

	if c.Ready() {
		t.Fatal("client ready before indexing")
	}

	docs := []Document{
		{Source: "alpha.txt", Text: "short text"},
		{Source: "beta.txt", Text: strings.Repeat("long passage ", 3)},
	}
	if err := c.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if !c.Ready() {
		t.Fatal("client not ready after indexing")
	}
	if c.ChunkCount() == 0 {
		t.Fatal("no chunks indexed")
	}

	got := c.Retrieve(context.Background(), "short text", 1)
	if !strings.Contains(got, "[alpha.txt]") {
		t.Errorf("expected alpha.txt chunk, got %q", got)
	}
}

func TestClient_IndexWithQueryOnlyEmbedder(t *testing.T) {
	emb := &queryOnlyEmbedder{}
	c, err := New(
		WithEmbedder(emb),
		WithCompleter(scriptedCompleter{}),
		WithChunking(40, 10),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	docs := []Document{
		{Source: "alpha.txt", Text: "short text"},
		{Source: "beta.txt", Text: strings.Repeat("long passage ", 3)},
	}
	if err := c.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if c.ChunkCount() == 0 {
		t.Fatal("no chunks indexed")
	}
	if emb.calls < c.ChunkCount() {
		t.Errorf("expected one embed call per chunk, got %d calls for %d chunks",
			emb.calls, c.ChunkCount())
	}

	got := c.Retrieve(context.Background(), "short text", 1)
	if !strings.Contains(got, "[alpha.txt]") {
		t.Errorf("expected alpha.txt chunk, got %q", got)
	}
}

func TestClient_ChatRecordsHistory(t *testing.T) {
	c := newTestClient(t, []string{"hello ", "back"})
	if err := c.Index(context.Background(), []Document{{Source: "a.txt", Text: "context"}}); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	reply, err := c.Chat(context.Background(), "s1", "hi")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply != "hello back" {
		t.Errorf("reply = %q, want %q", reply, "hello back")
	}

	history := c.History("s1")
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Errorf("unexpected roles: %+v", history)
	}

	c.ClearSession("s1")
	if len(c.History("s1")) != 0 {
		t.Error("session not cleared")
	}
}

func TestClient_ChatStreamDeliversDeltas(t *testing.T) {
	c := newTestClient(t, []string{"a", "b", "c"})

	var deltas []string
	err := c.ChatStream(context.Background(), "s1", "hi", func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if len(deltas) != 3 {
		t.Errorf("expected 3 deltas, got %v", deltas)
	}
}

func TestClient_ChatWithoutIndexStillAnswers(t *testing.T) {
	c := newTestClient(t, []string{"ok"})

	reply, err := c.Chat(context.Background(), "s1", "hi")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply != "ok" {
		t.Errorf("reply = %q, want %q", reply, "ok")
	}
}
