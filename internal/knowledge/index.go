package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/suPer8Hu/hotel-concierge/internal/ai"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"go.uber.org/zap"
)

type Document struct {
	ID   string
	Text string
}

// Chunk is an immutable, embedded fragment of a document.
type Chunk struct {
	DocumentID   string
	Index        int
	Content      string
	Tokens       int
	Embedding    []float32
	DocumentHash string
}

type Match struct {
	Chunk Chunk
	Score float64
}

type IngestResult struct {
	DocumentID string
	Chunks     int
	Skipped    bool
}

type DocumentInfo struct {
	ID     string `json:"id"`
	Hash   string `json:"hash"`
	Chunks int    `json:"chunks"`
}

// snapshot is never mutated after it is published. chunks stay in ingestion
// order, which is what breaks similarity ties.
type snapshot struct {
	chunks []Chunk
	docs   map[string]string // document id -> content hash
}

// Index is an in-process nearest-neighbour index over knowledge chunks.
// Writers build a new snapshot and swap it in; readers never block and never
// see a partially ingested document.
type Index struct {
	embedder ai.Embedder
	splitter Splitter
	repo     *Repo
	log      *zap.Logger

	writeMu sync.Mutex
	snap    atomic.Pointer[snapshot]
	ready   atomic.Bool
}

// NewIndex builds an empty index. repo may be nil for a purely in-memory index.
func NewIndex(embedder ai.Embedder, splitter Splitter, repo *Repo, log *zap.Logger) *Index {
	x := &Index{embedder: embedder, splitter: splitter, repo: repo, log: log}
	x.snap.Store(&snapshot{docs: map[string]string{}})
	return x
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Ingest splits, embeds and stores doc. Re-ingesting identical content is
// skipped; changed content replaces the document's previous chunks.
func (x *Index) Ingest(ctx context.Context, doc Document) (IngestResult, error) {
	id := strings.TrimSpace(doc.ID)
	if id == "" {
		return IngestResult{}, apperr.InvalidArgument("document id is required")
	}
	hash := contentHash(doc.Text)
	res := IngestResult{DocumentID: id}

	if x.snap.Load().docs[id] == hash {
		res.Skipped = true
		return res, nil
	}

	pieces := x.splitter.Split(doc.Text)
	var vecs [][]float32
	if len(pieces) > 0 {
		texts := make([]string, len(pieces))
		for i, p := range pieces {
			texts[i] = p.Text
		}
		var err error
		vecs, err = x.embedder.Embed(ctx, texts)
		if err != nil {
			return res, apperr.Internal(err, "embed document %s", id)
		}
		if len(vecs) != len(pieces) {
			return res, apperr.Internal(nil, "embedder returned %d vectors for %d chunks", len(vecs), len(pieces))
		}
	}

	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{
			DocumentID:   id,
			Index:        i,
			Content:      p.Text,
			Tokens:       p.Tokens,
			Embedding:    vecs[i],
			DocumentHash: hash,
		}
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	cur := x.snap.Load()
	if cur.docs[id] == hash {
		res.Skipped = true
		return res, nil
	}
	if x.repo != nil {
		if err := x.repo.ReplaceDocument(ctx, id, chunks); err != nil {
			return res, apperr.Internal(err, "persist document %s", id)
		}
	}
	x.snap.Store(cur.without(id).with(id, hash, chunks))

	res.Chunks = len(chunks)
	x.log.Info("knowledge document ingested",
		zap.String("document_id", id),
		zap.Int("chunks", len(chunks)))
	return res, nil
}

// Remove drops a document and its chunks. Unknown ids are a no-op.
func (x *Index) Remove(ctx context.Context, docID string) error {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return apperr.InvalidArgument("document id is required")
	}
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	cur := x.snap.Load()
	if _, ok := cur.docs[docID]; !ok {
		return nil
	}
	if x.repo != nil {
		if err := x.repo.DeleteDocument(ctx, docID); err != nil {
			return apperr.Internal(err, "delete document %s", docID)
		}
	}
	x.snap.Store(cur.without(docID))
	x.log.Info("knowledge document removed", zap.String("document_id", docID))
	return nil
}

// Load replaces the in-memory snapshot with what the repository holds, so a
// restart does not need to embed the documents again.
func (x *Index) Load(ctx context.Context) (int, error) {
	if x.repo == nil {
		return 0, nil
	}
	chunks, err := x.repo.All(ctx)
	if err != nil {
		return 0, apperr.Internal(err, "load knowledge chunks")
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()
	next := &snapshot{chunks: chunks, docs: map[string]string{}}
	for _, c := range chunks {
		next.docs[c.DocumentID] = c.DocumentHash
	}
	x.snap.Store(next)
	return len(chunks), nil
}

// Retrieve returns the k chunks most similar to query, best first. An empty
// index yields an empty result without calling the embedder.
func (x *Index) Retrieve(ctx context.Context, query string, k int) ([]Match, error) {
	snap := x.snap.Load()
	if k <= 0 || len(snap.chunks) == 0 {
		return []Match{}, nil
	}

	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apperr.Internal(err, "embed query")
	}
	if len(vecs) != 1 {
		return nil, apperr.Internal(nil, "embedder returned %d vectors for one query", len(vecs))
	}
	q := vecs[0]

	matches := make([]Match, len(snap.chunks))
	for i, c := range snap.chunks {
		matches[i] = Match{Chunk: c, Score: cosine(q, c.Embedding)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (x *Index) Documents() []DocumentInfo {
	snap := x.snap.Load()
	counts := map[string]int{}
	for _, c := range snap.chunks {
		counts[c.DocumentID]++
	}
	out := make([]DocumentInfo, 0, len(snap.docs))
	for id, hash := range snap.docs {
		out = append(out, DocumentInfo{ID: id, Hash: hash, Chunks: counts[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (x *Index) Len() int {
	return len(x.snap.Load().chunks)
}

// SetReady flips the readiness flag once startup ingestion is done.
func (x *Index) SetReady(v bool) { x.ready.Store(v) }

func (x *Index) Ready() bool { return x.ready.Load() }

func (s *snapshot) without(id string) *snapshot {
	next := &snapshot{
		chunks: make([]Chunk, 0, len(s.chunks)),
		docs:   make(map[string]string, len(s.docs)),
	}
	for _, c := range s.chunks {
		if c.DocumentID != id {
			next.chunks = append(next.chunks, c)
		}
	}
	for d, h := range s.docs {
		if d != id {
			next.docs[d] = h
		}
	}
	return next
}

// with appends in place; only call it on a snapshot that is not yet published.
func (s *snapshot) with(id, hash string, chunks []Chunk) *snapshot {
	s.chunks = append(s.chunks, chunks...)
	s.docs[id] = hash
	return s
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
