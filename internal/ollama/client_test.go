package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// tagsJSON builds a /api/tags response with the given model names.
func tagsJSON(names ...string) []byte {
	type entry struct {
		Name string `json:"name"`
	}
	var r struct {
		Models []entry `json:"models"`
	}
	for _, n := range names {
		r.Models = append(r.Models, entry{Name: n})
	}
	b, _ := json.Marshal(r)
	return b
}

func TestIsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("llama3:latest"))
	}))
	defer srv.Close()

	if !New(srv.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = false, want true")
	}

	srv.Close()
	if New(srv.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = true after shutdown, want false")
	}
}

func TestHasModel_MatchesWithoutTagSuffix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("llama3:latest", "nomic-embed-text:latest"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if !c.HasModel(context.Background(), "llama3") {
		t.Error("HasModel(llama3) = false, want true")
	}
	if c.HasModel(context.Background(), "mistral") {
		t.Error("HasModel(mistral) = true, want false")
	}
}

func TestChat_SendsSchemaAsFormat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "hello"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	schema := &Schema{Type: "object", Properties: map[string]SchemaProperty{
		"subject": {Type: "string"},
	}}
	got, err := c.Chat(context.Background(), "llama3", []Message{{Role: "user", Content: "hi"}}, schema)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello" {
		t.Errorf("Chat = %q, want %q", got, "hello")
	}
	if gotBody["format"] == nil {
		t.Error("request body missing format field for structured output")
	}
	if gotBody["stream"] != false {
		t.Error("stream should be false")
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s, want /api/embed", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	vec, err := New(srv.URL).Embed(context.Background(), "nomic-embed-text", "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("got %d dims, want 3", len(vec))
	}
}

func TestEmbed_EmptyEmbeddingsIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Embed(context.Background(), "m", "text"); err == nil {
		t.Error("expected error for empty embeddings, got nil")
	}
}

func TestChat_Non200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Chat(context.Background(), "m", nil, nil); err == nil {
		t.Error("expected error for 500 response, got nil")
	}
}
