package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/notewell/notewell/internal/answer"
	"github.com/notewell/notewell/internal/classify"
	"github.com/notewell/notewell/internal/retrieval"
)

func testMCPDeps() (MCPDeps, *mockIndexer, *mockSearchProvider) {
	idx := &mockIndexer{upsertOK: true, removeOK: true}
	search := &mockSearchProvider{}
	return MCPDeps{
		Index:      idx,
		Retriever:  search,
		Composer:   &mockAnswerer{resp: answer.Response{Text: "grounded answer", Confidence: 0.8}},
		Classifier: &mockClassifier{},
	}, idx, search
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func TestMCPIndexNote(t *testing.T) {
	deps, idx, _ := testMCPDeps()
	handler := mcpIndexNote(deps)

	result, err := handler(context.Background(), makeCallToolRequest("index_note", map[string]any{
		"owner_id": "u1",
		"content":  "Newton's laws.",
		"subject":  "Physics",
		"title":    "Laws",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	if len(idx.upserts) != 1 {
		t.Fatalf("got %d upserts, want 1", len(idx.upserts))
	}
	if idx.upserts[0].Subject != "Physics" || idx.upserts[0].SourceID == "" {
		t.Errorf("upserted note = %+v", idx.upserts[0])
	}

	var indexed []IndexedNote
	if err := json.Unmarshal([]byte(toolText(t, result)), &indexed); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(indexed) != 1 || indexed[0].ID != idx.upserts[0].SourceID {
		t.Errorf("result = %v", indexed)
	}
}

func TestMCPIndexNote_ClassifiesWithVocabulary(t *testing.T) {
	deps, idx, _ := testMCPDeps()
	deps.Classifier = &mockClassifier{records: []classify.Record{
		{Subject: "Physics", Title: "Laws", Content: "Newton's laws."},
		{Subject: "History", Title: "Rome", Content: "The empire fell."},
	}}
	handler := mcpIndexNote(deps)

	result, err := handler(context.Background(), makeCallToolRequest("index_note", map[string]any{
		"owner_id":   "u1",
		"content":    "mixed text",
		"vocabulary": []any{"Physics", "History"},
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if len(idx.upserts) != 2 {
		t.Errorf("got %d upserts, want 2", len(idx.upserts))
	}
}

func TestMCPIndexNote_MissingArgs(t *testing.T) {
	deps, _, _ := testMCPDeps()
	handler := mcpIndexNote(deps)

	result, err := handler(context.Background(), makeCallToolRequest("index_note", map[string]any{
		"owner_id": "u1",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing content")
	}
}

func TestMCPSearchNotes(t *testing.T) {
	deps, _, search := testMCPDeps()
	search.hits = []retrieval.SearchHit{{SourceID: "n1", Relevance: 0.9}}
	handler := mcpSearchNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_notes", map[string]any{
		"owner_id": "u1",
		"query":    "laws of motion",
		"subject":  "Physics",
		"limit":    float64(5),
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if search.gotSubject != "Physics" || search.gotLimit != 5 {
		t.Errorf("search called with %q/%d", search.gotSubject, search.gotLimit)
	}

	var hits []retrieval.SearchHit
	if err := json.Unmarshal([]byte(toolText(t, result)), &hits); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(hits) != 1 || hits[0].SourceID != "n1" {
		t.Errorf("hits = %v", hits)
	}
}

func TestMCPSearchNotes_EmptyResult(t *testing.T) {
	deps, _, _ := testMCPDeps()
	handler := mcpSearchNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_notes", map[string]any{
		"owner_id": "u1",
		"query":    "anything",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got := toolText(t, result); got != "[]" {
		t.Errorf("result = %q, want []", got)
	}
}

func TestMCPAskNotes(t *testing.T) {
	deps, _, _ := testMCPDeps()
	handler := mcpAskNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_notes", map[string]any{
		"owner_id": "u1",
		"question": "what are the laws of motion?",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var resp answer.Response
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if resp.Text != "grounded answer" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestMCPAskNotes_MissingQuestion(t *testing.T) {
	deps, _, _ := testMCPDeps()
	handler := mcpAskNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_notes", map[string]any{
		"owner_id": "u1",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing question")
	}
}
