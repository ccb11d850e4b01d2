package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/hotel-concierge/internal/ai"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"github.com/suPer8Hu/hotel-concierge/internal/logging"
	"gorm.io/gorm"
)

type countingEmbedder struct {
	inner ai.Embedder
	calls atomic.Int64
}

func (e *countingEmbedder) Name() string { return "counting" }

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	return e.inner.Embed(ctx, texts)
}

// constantEmbedder maps every text to the same vector, so every score ties.
type constantEmbedder struct{}

func (constantEmbedder) Name() string { return "constant" }

func (constantEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 1}
	}
	return out, nil
}

func newIndex(t *testing.T, chunkSize int, repo *Repo) (*Index, *countingEmbedder) {
	t.Helper()
	emb := &countingEmbedder{inner: ai.NewHashEmbedder(256)}
	return NewIndex(emb, NewSplitter(chunkSize), repo, logging.Nop()), emb
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&ChunkRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestRetrieveOnEmptyIndex(t *testing.T) {
	x, emb := newIndex(t, 50, nil)

	got, err := x.Retrieve(context.Background(), "cancellation fee", 4)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", got)
	}
	if emb.calls.Load() != 0 {
		t.Fatalf("empty index must not call the embedder")
	}
}

func TestRetrieveFindsRelevantChunk(t *testing.T) {
	x, _ := newIndex(t, 40, nil)
	ctx := context.Background()

	res, err := x.Ingest(ctx, TermsDocument())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Chunks < 2 {
		t.Fatalf("expected the terms to split into several chunks, got %d", res.Chunks)
	}

	matches, err := x.Retrieve(ctx, "cancellations made within 48 hours of check-in are charged one night of the room rate", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if !strings.Contains(matches[0].Chunk.Content, "48 hours") {
		t.Fatalf("expected cancellation chunk first, got %q", matches[0].Chunk.Content)
	}
	if matches[0].Score < matches[1].Score {
		t.Fatalf("matches must be ordered by score")
	}
}

func TestRetrieveBreaksTiesByIngestionOrder(t *testing.T) {
	x := NewIndex(constantEmbedder{}, NewSplitter(3), nil, logging.Nop())
	ctx := context.Background()

	if _, err := x.Ingest(ctx, Document{ID: "b", Text: "one two three four five six"}); err != nil {
		t.Fatalf("ingest b: %v", err)
	}
	if _, err := x.Ingest(ctx, Document{ID: "a", Text: "seven eight nine"}); err != nil {
		t.Fatalf("ingest a: %v", err)
	}

	matches, err := x.Retrieve(ctx, "anything", 10)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	var order []string
	for _, m := range matches {
		order = append(order, fmt.Sprintf("%s/%d", m.Chunk.DocumentID, m.Chunk.Index))
	}
	if got := strings.Join(order, ","); got != "b/0,b/1,a/0" {
		t.Fatalf("unexpected order %s", got)
	}
}

func TestIngestIsIdempotentPerDocument(t *testing.T) {
	x, emb := newIndex(t, 5, nil)
	ctx := context.Background()
	doc := Document{ID: "terms", Text: "Check-in starts at 15:00. Check-out is by 11:00. Photo ID is required."}

	first, err := x.Ingest(ctx, doc)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	n := x.Len()
	calls := emb.calls.Load()

	second, err := x.Ingest(ctx, doc)
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if !second.Skipped || first.Skipped {
		t.Fatalf("expected only the second ingest to be skipped")
	}
	if x.Len() != n || emb.calls.Load() != calls {
		t.Fatalf("re-ingesting identical content must not duplicate or re-embed")
	}

	doc.Text = "Check-in starts at 14:00."
	if _, err := x.Ingest(ctx, doc); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if x.Len() != 1 {
		t.Fatalf("expected replaced document to have 1 chunk, got %d", x.Len())
	}
	docs := x.Documents()
	if len(docs) != 1 || docs[0].Chunks != 1 {
		t.Fatalf("unexpected documents %+v", docs)
	}
}

func TestRemove(t *testing.T) {
	x, _ := newIndex(t, 10, nil)
	ctx := context.Background()
	_, _ = x.Ingest(ctx, Document{ID: "a", Text: "alpha beta"})
	_, _ = x.Ingest(ctx, Document{ID: "b", Text: "gamma delta"})

	if err := x.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := x.Remove(ctx, "missing"); err != nil {
		t.Fatalf("remove unknown: %v", err)
	}
	if x.Len() != 1 || x.Documents()[0].ID != "b" {
		t.Fatalf("unexpected state after remove: %+v", x.Documents())
	}
}

func TestRemoveTrimsID(t *testing.T) {
	x, _ := newIndex(t, 10, nil)
	ctx := context.Background()
	if _, err := x.Ingest(ctx, Document{ID: " pets.txt ", Text: "Pets are welcome."}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := x.Remove(ctx, "  pets.txt"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if x.Len() != 0 || len(x.Documents()) != 0 {
		t.Fatalf("document should be gone: %+v", x.Documents())
	}
	if err := x.Remove(ctx, "   "); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for blank id, got %v", err)
	}
}

func TestIngestRejectsEmptyID(t *testing.T) {
	x, _ := newIndex(t, 10, nil)
	if _, err := x.Ingest(context.Background(), Document{ID: "  ", Text: "x"}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestPersistedChunksReload(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	x, _ := newIndex(t, 30, NewRepo(db))
	if _, err := x.Ingest(ctx, TermsDocument()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	want := x.Len()

	restored, emb := newIndex(t, 30, NewRepo(db))
	n, err := restored.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != want || restored.Len() != want {
		t.Fatalf("expected %d chunks restored, got %d", want, n)
	}

	// the restored index knows the hash, so the startup ingest is a no-op
	res, err := restored.Ingest(ctx, TermsDocument())
	if err != nil {
		t.Fatalf("ingest after load: %v", err)
	}
	if !res.Skipped || emb.calls.Load() != 0 {
		t.Fatalf("expected skip without embedding, got %+v calls=%d", res, emb.calls.Load())
	}

	var rows int64
	db.Model(&ChunkRecord{}).Count(&rows)
	if int(rows) != want {
		t.Fatalf("expected %d persisted rows, got %d", want, rows)
	}
}

func TestReadersNeverSeePartialDocuments(t *testing.T) {
	x := NewIndex(constantEmbedder{}, NewSplitter(2), nil, logging.Nop())
	ctx := context.Background()
	if _, err := x.Ingest(ctx, Document{ID: "doc", Text: "v0 a v0 b v0 c"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var bad atomic.Int64
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				matches, err := x.Retrieve(ctx, "q", 100)
				if err != nil || len(matches) != 3 {
					bad.Add(1)
					continue
				}
				for _, m := range matches[1:] {
					if m.Chunk.DocumentHash != matches[0].Chunk.DocumentHash {
						bad.Add(1)
					}
				}
			}
		}()
	}

	for i := 1; i <= 50; i++ {
		text := fmt.Sprintf("v%d a v%d b v%d c", i, i, i)
		if _, err := x.Ingest(ctx, Document{ID: "doc", Text: text}); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()

	if bad.Load() != 0 {
		t.Fatalf("readers observed %d inconsistent snapshots", bad.Load())
	}
}

func TestSplitterRespectsBudgetAndSentences(t *testing.T) {
	s := Splitter{ChunkSize: 5, MinChunkChars: 0}
	pieces := s.Split("One two three. Four five six seven eight nine ten.")
	if len(pieces) < 2 {
		t.Fatalf("expected several pieces, got %v", pieces)
	}
	if pieces[0].Text != "One two three." {
		t.Fatalf("expected first piece to end on the sentence, got %q", pieces[0].Text)
	}
	for _, p := range pieces {
		if p.Tokens > s.ChunkSize {
			t.Fatalf("piece over budget: %+v", p)
		}
	}
	if got := s.Split("   "); len(got) != 0 {
		t.Fatalf("expected no pieces for blank text")
	}
}

func TestWatcherIngestDirAndEvents(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "faq.md"), []byte("Parking costs 20 EUR per night."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "image.png"), []byte("binary"), 0o644); err != nil {
		t.Fatal(err)
	}

	x, _ := newIndex(t, 50, nil)
	w := NewWatcher(x, dir, logging.Nop())
	if err := w.IngestDir(context.Background()); err != nil {
		t.Fatalf("ingest dir: %v", err)
	}
	if docs := x.Documents(); len(docs) != 1 || docs[0].ID != "faq.md" {
		t.Fatalf("unexpected documents %+v", docs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher a moment to register the directory
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "pets.txt"), []byte("Pets are welcome in Double rooms."), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for len(x.Documents()) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("watcher did not ingest new file, documents=%+v", x.Documents())
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
