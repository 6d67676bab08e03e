// Package api exposes the note index over HTTP (chi) and MCP so the owning
// application, scripts, and agent hosts can drive the same core.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/notewell/notewell/internal/answer"
	"github.com/notewell/notewell/internal/classify"
	"github.com/notewell/notewell/internal/index"
	"github.com/notewell/notewell/internal/retrieval"
	"github.com/notewell/notewell/internal/subject"
)

const maxRequestBodySize = 10 << 20 // 10MB

// Indexer writes and removes notes. Satisfied by *index.Store.
type Indexer interface {
	Upsert(ctx context.Context, note index.Note) bool
	Remove(sourceID string) bool
}

// SearchProvider answers similarity queries. Satisfied by *retrieval.Retriever.
type SearchProvider interface {
	Search(ctx context.Context, query, ownerID string, limit int, subjectFilter string) []retrieval.SearchHit
	GetSimilar(ctx context.Context, sourceID, ownerID string, limit int) []retrieval.SearchHit
}

// Answerer composes grounded answers. Satisfied by *answer.Composer.
type Answerer interface {
	Answer(ctx context.Context, question, ownerID string, vocabulary []string, maxNotes int) answer.Response
}

// DocClassifier segments documents by subject. Satisfied by *classify.Classifier.
type DocClassifier interface {
	Classify(ctx context.Context, text string, vocabulary []string) []classify.Record
}

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Index      Indexer
	Retriever  SearchProvider
	Composer   Answerer
	Classifier DocClassifier
}

// NewHandler builds the HTTP API router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/notes", handleIndexNote(deps))
		r.Delete("/notes/{id}", handleRemoveNote(deps))
		r.Get("/notes/{id}/similar", handleSimilar(deps))
		r.Get("/search", handleSearch(deps))
		r.Post("/ask", handleAsk(deps))
		r.Post("/classify", handleClassify(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// IndexNoteRequest creates or replaces a note. When Subject is empty and a
// vocabulary is supplied, the content is classified first and each classified
// section becomes its own note.
type IndexNoteRequest struct {
	ID         string   `json:"id"`
	OwnerID    string   `json:"owner_id"`
	Subject    string   `json:"subject"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Vocabulary []string `json:"vocabulary"`
}

// IndexedNote describes one note created by an index request.
type IndexedNote struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Title   string `json:"title"`
}

func handleIndexNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req IndexNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.OwnerID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "owner_id is required")
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}

		now := time.Now().UTC()
		var notes []index.Note

		switch {
		case req.Subject != "":
			notes = append(notes, index.Note{
				SourceID:  req.ID,
				OwnerID:   req.OwnerID,
				Subject:   req.Subject,
				Title:     req.Title,
				Content:   req.Content,
				CreatedAt: now,
			})
		case len(req.Vocabulary) > 0:
			for _, rec := range deps.Classifier.Classify(r.Context(), req.Content, req.Vocabulary) {
				notes = append(notes, index.Note{
					OwnerID:   req.OwnerID,
					Subject:   rec.Subject,
					Title:     rec.Title,
					Content:   rec.Content,
					CreatedAt: now,
				})
			}
			if len(notes) == 0 {
				httpError(w, http.StatusServiceUnavailable, "api_error", "classification produced no records")
				return
			}
			// The caller-supplied id names the first section only.
			notes[0].SourceID = req.ID
		default:
			notes = append(notes, index.Note{
				SourceID:  req.ID,
				OwnerID:   req.OwnerID,
				Subject:   subject.General,
				Title:     req.Title,
				Content:   req.Content,
				CreatedAt: now,
			})
		}

		indexed := make([]IndexedNote, 0, len(notes))
		for _, note := range notes {
			if note.SourceID == "" {
				note.SourceID = uuid.New().String()
			}
			if !deps.Index.Upsert(r.Context(), note) {
				httpError(w, http.StatusServiceUnavailable, "api_error", "indexing failed for note %s", note.SourceID)
				return
			}
			indexed = append(indexed, IndexedNote{ID: note.SourceID, Subject: note.Subject, Title: note.Title})
		}

		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"notes": indexed})
	}
}

func handleRemoveNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !deps.Index.Remove(id) {
			httpError(w, http.StatusServiceUnavailable, "api_error", "removal failed for note %s", id)
			return
		}
		writeJSON(w, map[string]string{"status": "removed", "id": id})
	}
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.URL.Query().Get("owner_id")
		if ownerID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "owner_id is required")
			return
		}

		query := r.URL.Query().Get("q")
		limit := parseIntParam(r, "limit", retrieval.DefaultLimit, 50)
		subjectFilter := r.URL.Query().Get("subject")

		hits := deps.Retriever.Search(r.Context(), query, ownerID, limit, subjectFilter)
		if hits == nil {
			hits = []retrieval.SearchHit{}
		}
		writeJSON(w, map[string]any{"hits": hits})
	}
}

func handleSimilar(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.URL.Query().Get("owner_id")
		if ownerID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "owner_id is required")
			return
		}

		id := chi.URLParam(r, "id")
		limit := parseIntParam(r, "limit", 5, 20)

		hits := deps.Retriever.GetSimilar(r.Context(), id, ownerID, limit)
		if hits == nil {
			hits = []retrieval.SearchHit{}
		}
		writeJSON(w, map[string]any{"hits": hits})
	}
}

// AskRequest is a question over the owner's notes.
type AskRequest struct {
	Question   string   `json:"question"`
	OwnerID    string   `json:"owner_id"`
	Vocabulary []string `json:"vocabulary"`
	MaxNotes   int      `json:"max_notes"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}
		if req.OwnerID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "owner_id is required")
			return
		}

		writeJSON(w, deps.Composer.Answer(r.Context(), req.Question, req.OwnerID, req.Vocabulary, req.MaxNotes))
	}
}

// ClassifyRequest segments text into subject-tagged records.
type ClassifyRequest struct {
	Text       string   `json:"text"`
	Vocabulary []string `json:"vocabulary"`
}

func handleClassify(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ClassifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}
		if len(req.Vocabulary) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "vocabulary is required")
			return
		}

		records := deps.Classifier.Classify(r.Context(), req.Text, req.Vocabulary)
		if records == nil {
			records = []classify.Record{}
		}
		writeJSON(w, map[string]any{"records": records})
	}
}

func parseIntParam(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
