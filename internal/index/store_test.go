package index

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database with the note_vectors table.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE note_vectors (
			id          TEXT PRIMARY KEY,
			source_id   TEXT NOT NULL,
			owner_id    TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			subject     TEXT NOT NULL DEFAULT '',
			title       TEXT NOT NULL DEFAULT '',
			text_chunk  TEXT NOT NULL,
			embedding   BLOB NOT NULL,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		t.Fatalf("creating table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// fakeEmbedder hashes text into a small deterministic vector so similar
// inputs get identical vectors without a real model.
type fakeEmbedder struct {
	calls int
	fail  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedder down")
	}
	return hashVector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func hashVector(text string) []float32 {
	v := make([]float32, 8)
	for i, r := range text {
		v[i%8] += float32(r%13) / 13
	}
	return v
}

func testNote(source, owner, content string) Note {
	return Note{
		SourceID: source,
		OwnerID:  owner,
		Subject:  "Physics",
		Title:    "Mechanics",
		Content:  content,
	}
}

func TestUpsertAndQuery(t *testing.T) {
	db := openTestDB(t)
	s := New(db, &fakeEmbedder{}, 0, 0)

	if ok := s.Upsert(context.Background(), testNote("n1", "u1", "Newton's laws of motion describe classical mechanics.")); !ok {
		t.Fatal("Upsert returned false")
	}

	vec := hashVector("Mechanics\n\nNewton's laws of motion describe classical mechanics.")
	results, err := s.Query(vec, "u1", "", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].SourceID != "n1" {
		t.Errorf("SourceID = %q, want n1", results[0].SourceID)
	}
	if results[0].Distance > 0.001 {
		t.Errorf("distance to own vector = %f, want ~0", results[0].Distance)
	}
	if results[0].Subject != "Physics" || results[0].Title != "Mechanics" {
		t.Errorf("metadata lost: %+v", results[0].Chunk)
	}
}

func TestQuery_OwnerIsolation(t *testing.T) {
	db := openTestDB(t)
	s := New(db, &fakeEmbedder{}, 0, 0)

	s.Upsert(context.Background(), testNote("n1", "u1", "Newton's laws of motion."))

	vec := hashVector("anything")
	results, err := s.Query(vec, "other", "", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for wrong owner, want 0", len(results))
	}
}

func TestQuery_SubjectFilter(t *testing.T) {
	db := openTestDB(t)
	s := New(db, &fakeEmbedder{}, 0, 0)

	ctx := context.Background()
	phys := testNote("n1", "u1", "Forces and acceleration.")
	hist := testNote("n2", "u1", "The fall of Rome.")
	hist.Subject = "History"
	s.Upsert(ctx, phys)
	s.Upsert(ctx, hist)

	results, err := s.Query(hashVector("query"), "u1", "History", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, r := range results {
		if r.Subject != "History" {
			t.Errorf("subject filter leaked %q", r.Subject)
		}
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestUpsertThenRemove_LeavesNothing(t *testing.T) {
	db := openTestDB(t)
	s := New(db, &fakeEmbedder{}, 0, 0)

	ctx := context.Background()
	s.Upsert(ctx, testNote("n1", "u1", "Some indexed content."))
	if ok := s.Remove("n1"); !ok {
		t.Fatal("Remove returned false")
	}

	n, err := s.CountForSource("n1")
	if err != nil {
		t.Fatalf("CountForSource: %v", err)
	}
	if n != 0 {
		t.Errorf("chunk count after remove = %d, want 0", n)
	}

	// Removing an already absent source is a no-op success.
	if ok := s.Remove("n1"); !ok {
		t.Error("Remove of absent source returned false")
	}
}

func TestUpsert_ReplacesPreviousVersion(t *testing.T) {
	db := openTestDB(t)
	s := New(db, &fakeEmbedder{}, 80, 10)

	ctx := context.Background()
	longContent := "First sentence of the original version. Second sentence here. Third sentence for good measure. Fourth one too."
	s.Upsert(ctx, testNote("n1", "u1", longContent))

	first, _ := s.CountForSource("n1")
	if first < 2 {
		t.Fatalf("want multiple chunks from long content, got %d", first)
	}

	s.Upsert(ctx, testNote("n1", "u1", "Tiny replacement."))
	second, _ := s.CountForSource("n1")
	if second != 1 {
		t.Errorf("chunk count after re-upsert = %d, want 1", second)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	db := openTestDB(t)
	s := New(db, &fakeEmbedder{}, 0, 0)

	ctx := context.Background()
	note := testNote("n1", "u1", "Stable content for idempotence check.")
	s.Upsert(ctx, note)
	once, _ := s.CountForSource("n1")

	s.Upsert(ctx, note)
	twice, _ := s.CountForSource("n1")

	if once != twice {
		t.Errorf("chunk count changed across identical upserts: %d then %d", once, twice)
	}
}

func TestUpsert_EmbedFailureRemovesOldVersion(t *testing.T) {
	db := openTestDB(t)
	emb := &fakeEmbedder{}
	s := New(db, emb, 0, 0)

	ctx := context.Background()
	s.Upsert(ctx, testNote("n1", "u1", "Original content."))

	emb.fail = true
	if ok := s.Upsert(ctx, testNote("n1", "u1", "New content.")); ok {
		t.Fatal("Upsert succeeded despite embedder failure")
	}

	// Removal precedes insertion, so the failed upsert must not leave the
	// previous version queryable.
	n, _ := s.CountForSource("n1")
	if n != 0 {
		t.Errorf("stale chunks remain after failed upsert: %d", n)
	}
}

func TestQuery_OverfetchCap(t *testing.T) {
	db := openTestDB(t)
	s := New(db, &fakeEmbedder{}, 0, 0)

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		s.Upsert(ctx, testNote(noteID(i), "u1", "Content number "+noteID(i)+" about physics."))
	}

	results, err := s.Query(hashVector("physics"), "u1", "", 30)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) > 50 {
		t.Errorf("got %d raw results, cap is 50", len(results))
	}

	// Results must be ordered by non-decreasing distance.
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("results out of order at %d: %f < %f", i, results[i].Distance, results[i-1].Distance)
		}
	}
}

func TestFirstChunkEmbedding(t *testing.T) {
	db := openTestDB(t)
	s := New(db, &fakeEmbedder{}, 0, 0)

	ctx := context.Background()
	s.Upsert(ctx, testNote("n1", "u1", "Reference note content."))

	vec, err := s.FirstChunkEmbedding("n1", "u1")
	if err != nil {
		t.Fatalf("FirstChunkEmbedding: %v", err)
	}
	if len(vec) == 0 {
		t.Error("got empty embedding")
	}

	if _, err := s.FirstChunkEmbedding("missing", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.FirstChunkEmbedding("n1", "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong owner err = %v, want ErrNotFound", err)
	}
}

func noteID(i int) string {
	return string(rune('a'+i/26)) + string(rune('a'+i%26))
}
