package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/notewell/notewell/internal/index"
)

// DefaultLimit is how many hits Search returns when the caller passes no limit.
const DefaultLimit = 10

// excerptLen bounds the matched-text excerpt attached to each hit.
const excerptLen = 300

// SearchHit is one retrieved note, never persisted.
type SearchHit struct {
	SourceID  string    `json:"source_id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
	Relevance float32   `json:"relevance"`
	Excerpt   string    `json:"excerpt"`
}

// ChunkStore is the slice of the embedding index the retriever reads from.
// Satisfied by *index.Store.
type ChunkStore interface {
	Query(vector []float32, ownerID, subjectFilter string, limit int) ([]index.ScoredChunk, error)
	FirstChunkEmbedding(sourceID, ownerID string) ([]float32, error)
}

// QueryEmbedder embeds query text. Satisfied by *Embedder.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever answers similarity queries over the note index, collapsing
// multiple chunk hits per note down to the best one.
type Retriever struct {
	embedder QueryEmbedder
	store    ChunkStore
}

// NewRetriever creates a Retriever backed by the given embedder and store.
func NewRetriever(embedder QueryEmbedder, store ChunkStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Search embeds query and returns up to limit hits owned by ownerID, ranked
// by descending relevance. subjectFilter, when non-empty, restricts hits to
// that subject. Blank queries return nil without touching the embedding
// model; any backend failure degrades to an empty result.
func (r *Retriever) Search(ctx context.Context, query, ownerID string, limit int, subjectFilter string) []SearchHit {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("retrieval: embedding query failed", "error", err)
		return nil
	}

	scored, err := r.store.Query(vec, ownerID, subjectFilter, limit)
	if err != nil {
		slog.Warn("retrieval: index query failed", "error", err)
		return nil
	}

	return rankBySource(scored, "", limit)
}

// GetSimilar returns notes similar to the given source, using the source's
// own first chunk as the query vector. The reference note is excluded from
// the results.
func (r *Retriever) GetSimilar(ctx context.Context, sourceID, ownerID string, limit int) []SearchHit {
	if limit <= 0 {
		limit = 5
	}

	vec, err := r.store.FirstChunkEmbedding(sourceID, ownerID)
	if err != nil {
		if !errors.Is(err, index.ErrNotFound) {
			slog.Warn("retrieval: loading reference embedding failed", "source_id", sourceID, "error", err)
		}
		return nil
	}

	scored, err := r.store.Query(vec, ownerID, "", limit)
	if err != nil {
		slog.Warn("retrieval: index query failed", "error", err)
		return nil
	}

	return rankBySource(scored, sourceID, limit)
}

// rankBySource deduplicates scored chunks by source, keeping the highest
// similarity per source, then sorts descending and truncates to limit.
// excludeSource, when non-empty, drops that source entirely.
func rankBySource(scored []index.ScoredChunk, excludeSource string, limit int) []SearchHit {
	best := make(map[string]SearchHit)
	order := make([]string, 0, len(scored))

	for _, sc := range scored {
		if sc.SourceID == excludeSource && excludeSource != "" {
			continue
		}
		relevance := 1 - sc.Distance
		prev, seen := best[sc.SourceID]
		if !seen {
			order = append(order, sc.SourceID)
		}
		// Strictly greater keeps the earlier chunk on ties (stable).
		if !seen || relevance > prev.Relevance {
			best[sc.SourceID] = SearchHit{
				SourceID:  sc.SourceID,
				Title:     sc.Title,
				Subject:   sc.Subject,
				CreatedAt: sc.CreatedAt,
				Relevance: relevance,
				Excerpt:   excerpt(sc.Text),
			}
		}
	}

	hits := make([]SearchHit, 0, len(order))
	for _, id := range order {
		hits = append(hits, best[id])
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Relevance > hits[j].Relevance
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func excerpt(text string) string {
	if len(text) <= excerptLen {
		return text
	}
	return text[:excerptLen] + "..."
}
