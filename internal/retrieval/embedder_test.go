package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// mockEngine implements EmbedEngine.
type mockEngine struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (m *mockEngine) Embed(_ context.Context, model, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.fail {
		return nil, errors.New("engine down")
	}
	return []float32{float32(len(text))}, nil
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	eng := &mockEngine{}
	e := NewEmbedder(eng, "nomic-embed-text")

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("vector %d = %v, not aligned with input %q", i, v, texts[i])
		}
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	e := NewEmbedder(&mockEngine{}, "m")
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vecs != nil {
		t.Errorf("got %v, want nil", vecs)
	}
}

func TestEmbedBatch_PropagatesFailure(t *testing.T) {
	e := NewEmbedder(&mockEngine{fail: true}, "m")
	if _, err := e.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error, got nil")
	}
}
