// Package index owns the persisted mapping from note chunks to embedding
// vectors and metadata. It is the only writer of the note_vectors table.
package index

import (
	"container/heap"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/notewell/notewell/internal/chunker"
)

// ErrNotFound is returned when a source has no indexed chunks.
var ErrNotFound = errors.New("no chunks indexed for source")

// Chunk is one indexed text segment of a note. Chunks are immutable once
// written; re-indexing a note replaces all of them.
type Chunk struct {
	ID         string // "<source_id>:<chunk_index>"
	SourceID   string
	OwnerID    string
	ChunkIndex int
	Subject    string
	Title      string
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredChunk is a Chunk with its cosine distance from a query vector.
type ScoredChunk struct {
	Chunk
	Distance float32
}

// Note is the input to Upsert: one source document to (re-)index.
type Note struct {
	SourceID  string
	OwnerID   string
	Subject   string
	Title     string
	Content   string
	CreatedAt time.Time
}

// Embedder turns text into vectors. Satisfied by retrieval.Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists chunk embeddings in SQLite and answers brute-force cosine
// similarity queries over them. Upsert and Remove serialize per source_id;
// operations on different sources run independently.
type Store struct {
	db       *sql.DB
	embedder Embedder

	maxChars     int
	overlapChars int

	mu          sync.Mutex
	sourceLocks map[string]*sync.Mutex
}

// New creates a Store over db. maxChars/overlapChars configure chunking;
// zero values select the chunker defaults.
func New(db *sql.DB, embedder Embedder, maxChars, overlapChars int) *Store {
	if maxChars <= 0 {
		maxChars = chunker.DefaultMaxChars
	}
	if overlapChars < 0 {
		overlapChars = chunker.DefaultOverlapChars
	}
	return &Store{
		db:           db,
		embedder:     embedder,
		maxChars:     maxChars,
		overlapChars: overlapChars,
		sourceLocks:  make(map[string]*sync.Mutex),
	}
}

// lockSource serializes mutations for one source_id. Returns the unlock func.
func (s *Store) lockSource(sourceID string) func() {
	s.mu.Lock()
	m, ok := s.sourceLocks[sourceID]
	if !ok {
		m = &sync.Mutex{}
		s.sourceLocks[sourceID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Upsert replaces all indexed chunks for the note's source with freshly
// chunked and embedded content. Returns false on any embedding or storage
// failure; the removal of the previous version happens unconditionally first,
// so a failed upsert never leaves stale chunks behind.
func (s *Store) Upsert(ctx context.Context, note Note) bool {
	unlock := s.lockSource(note.SourceID)
	defer unlock()

	if err := s.deleteSource(note.SourceID); err != nil {
		slog.Error("index: removing previous chunks failed", "source_id", note.SourceID, "error", err)
		return false
	}

	fullText := note.Title + "\n\n" + note.Content
	var texts []string
	for _, c := range chunker.Chunk(fullText, s.maxChars, s.overlapChars) {
		if strings.TrimSpace(c) == "" {
			continue
		}
		texts = append(texts, c)
	}
	if len(texts) == 0 {
		return true
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		slog.Error("index: embedding chunks failed", "source_id", note.SourceID, "error", err)
		return false
	}

	createdAt := note.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("index: beginning insert transaction failed", "source_id", note.SourceID, "error", err)
		return false
	}

	stmt, err := tx.Prepare(`
		INSERT INTO note_vectors (id, source_id, owner_id, chunk_index, subject, title, text_chunk, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("index: preparing insert failed", "source_id", note.SourceID, "error", err)
		return false
	}
	defer stmt.Close()

	for i, text := range texts {
		id := fmt.Sprintf("%s:%d", note.SourceID, i)
		blob := encodeFloat32s(vectors[i])
		if _, err := stmt.Exec(id, note.SourceID, note.OwnerID, i, note.Subject, note.Title, text, blob, createdAt.Format(time.RFC3339)); err != nil {
			tx.Rollback()
			slog.Error("index: inserting chunk failed", "chunk_id", id, "error", err)
			return false
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("index: committing insert failed", "source_id", note.SourceID, "error", err)
		return false
	}
	return true
}

// Remove deletes every chunk belonging to sourceID. A source with no indexed
// chunks is a no-op success.
func (s *Store) Remove(sourceID string) bool {
	unlock := s.lockSource(sourceID)
	defer unlock()

	if err := s.deleteSource(sourceID); err != nil {
		slog.Error("index: removing chunks failed", "source_id", sourceID, "error", err)
		return false
	}
	return true
}

func (s *Store) deleteSource(sourceID string) error {
	_, err := s.db.Exec("DELETE FROM note_vectors WHERE source_id = ?", sourceID)
	return err
}

// maxRawResults caps the over-fetch used for downstream deduplication.
const maxRawResults = 50

// Query returns up to min(limit*3, 50) chunks nearest to vector, restricted
// to ownerID and, when non-empty, subjectFilter. Results are ordered by
// ascending cosine distance. Multiple chunks of the same source may appear;
// deduplication is the caller's job.
func (s *Store) Query(vector []float32, ownerID, subjectFilter string, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	fetch := limit * 3
	if fetch > maxRawResults {
		fetch = maxRawResults
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	// Phase 1: scan only id + embedding to find the nearest candidates.
	q := "SELECT id, embedding FROM note_vectors WHERE owner_id = ?"
	args := []any{ownerID}
	if subjectFilter != "" {
		q += " AND subject = ?"
		args = append(args, subjectFilter)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &distHeap{}
	heap.Init(h)

	// Reusable buffer to avoid per-row allocations while scanning.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		dist := 1 - cosineSimilarity(vector, buf, queryNorm)
		if h.Len() < fetch {
			heap.Push(h, idDistance{ID: id, Distance: dist})
		} else if dist < (*h)[0].Distance {
			(*h)[0] = idDistance{ID: id, Distance: dist}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full rows only for the winners.
	ids := make([]string, h.Len())
	distances := make(map[string]float32, h.Len())
	for i := len(ids) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idDistance)
		ids[i] = item.ID
		distances[item.ID] = item.Distance
	}

	chunks, err := s.chunksByIDs(ids)
	if err != nil {
		return nil, err
	}

	results := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, ScoredChunk{Chunk: c, Distance: distances[c.ID]})
	}
	sortByDistance(results)
	return results, nil
}

// FirstChunkEmbedding returns the embedding of a source's first chunk, used
// as the representative vector for similar-note lookups. Returns ErrNotFound
// when the source has no chunks for that owner.
func (s *Store) FirstChunkEmbedding(sourceID, ownerID string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRow(
		"SELECT embedding FROM note_vectors WHERE source_id = ? AND owner_id = ? ORDER BY chunk_index ASC LIMIT 1",
		sourceID, ownerID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading first chunk for %s: %w", sourceID, err)
	}
	return decodeFloat32s(blob)
}

// CountForSource returns how many chunks are indexed for sourceID.
func (s *Store) CountForSource(sourceID string) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM note_vectors WHERE source_id = ?", sourceID).Scan(&n)
	return n, err
}

func (s *Store) chunksByIDs(ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT id, source_id, owner_id, chunk_index, subject, title, text_chunk, embedding, created_at
		FROM note_vectors WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var blob []byte
		var createdAt string
		if err := rows.Scan(&c.ID, &c.SourceID, &c.OwnerID, &c.ChunkIndex, &c.Subject, &c.Title, &c.Text, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Embedding, err = decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", c.ID, err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", c.ID, err)
		}
		c.CreatedAt = t
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// sortByDistance sorts ascending by distance. Insertion sort: the slice is
// already bounded by maxRawResults.
func sortByDistance(results []ScoredChunk) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Distance < results[j-1].Distance; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// idDistance holds only the ID and distance during the scan phase of Query.
type idDistance struct {
	ID       string
	Distance float32
}

// distHeap is a max-heap by distance, so the worst candidate sits on top and
// gets replaced first.
type distHeap []idDistance

func (h distHeap) Len() int           { return len(h) }
func (h distHeap) Less(i, j int) bool { return h[i].Distance > h[j].Distance }
func (h distHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x any)        { *h = append(*h, x.(idDistance)) }
func (h *distHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
