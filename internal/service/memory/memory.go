package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/metrics"
	"github.com/sandevgo/chorus/pkg/log"
	"gonum.org/v1/gonum/floats"
)

// Memory is the per-session store of embedded turns.
// Recent turns are recalled verbatim, older ones by cosine similarity to the query.
type Memory struct {
	embedder core.Embedder
	now      core.Clock

	mu      sync.RWMutex
	records []core.MemoryRecord
}

func New(embedder core.Embedder) *Memory {
	return &Memory{
		embedder: embedder,
		now:      time.Now,
	}
}

// Add embeds the sanitized memory content and appends a record.
// A failed embedding is stored as nil; that record then only ever scores zero.
// Nothing is appended once ctx is done.
func (m *Memory) Add(ctx context.Context, userMessage, displayContent, memoryContent string) (core.MemoryRecord, error) {
	vec := m.embed(ctx, memoryContent)
	if err := ctx.Err(); err != nil {
		return core.MemoryRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := core.MemoryRecord{
		Index:          len(m.records),
		Embedding:      vec,
		UserMessage:    userMessage,
		MemoryContent:  memoryContent,
		DisplayContent: displayContent,
		Timestamp:      m.now(),
	}
	m.records = append(m.records, rec)
	return rec, nil
}

// RetrieveContext returns the last lastN records verbatim plus up to k older records
// ranked by similarity to query. If the query cannot be embedded only the verbatim
// window is returned.
func (m *Memory) RetrieveContext(ctx context.Context, query string, lastN, k int) core.MemoryContext {
	m.mu.RLock()
	records := make([]core.MemoryRecord, len(m.records))
	copy(records, m.records)
	m.mu.RUnlock()

	if lastN < 0 {
		lastN = 0
	}
	split := len(records) - lastN
	if split < 0 {
		split = 0
	}

	out := core.MemoryContext{Recent: records[split:]}
	older := records[:split]
	if k <= 0 || len(older) == 0 || query == "" {
		return out
	}

	queryVec, err := m.embedder.Embed(ctx, Sanitize(query))
	metrics.RecordEmbedding(err)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("query embedding failed, using verbatim context only")
		return out
	}

	out.Semantic = rank(queryVec, older, k)
	return out
}

type scored struct {
	rec   core.MemoryRecord
	score float64
}

// rank keeps the k best records. Equal scores keep turn order, so the earlier turn wins.
func rank(query []float64, records []core.MemoryRecord, k int) []core.MemoryRecord {
	items := make([]scored, len(records))
	for i, r := range records {
		items[i] = scored{rec: r, score: Cosine(query, r.Embedding)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	if len(items) > k {
		items = items[:k]
	}
	out := make([]core.MemoryRecord, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out
}

// Load replaces the memory with persisted records. Records that arrive without an
// embedding are embedded again; the rest are kept as-is so ranking matches the live session.
func (m *Memory) Load(ctx context.Context, records []core.MemoryRecord) {
	loaded := make([]core.MemoryRecord, len(records))
	copy(loaded, records)
	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].Index < loaded[j].Index
	})

	reembedded := 0
	for i := range loaded {
		loaded[i].Index = i
		if len(loaded[i].Embedding) == 0 {
			loaded[i].Embedding = m.embed(ctx, loaded[i].MemoryContent)
			reembedded++
		}
	}

	m.mu.Lock()
	m.records = loaded
	m.mu.Unlock()

	log.FromCtx(ctx).Debug().
		Int("records", len(loaded)).
		Int("reembedded", reembedded).
		Msg("memory loaded")
}

func (m *Memory) Reset() {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Snapshot returns a copy of all records in turn order.
func (m *Memory) Snapshot() []core.MemoryRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.MemoryRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *Memory) embed(ctx context.Context, text string) []float64 {
	text = Sanitize(text)
	if text == "" {
		return nil
	}
	vec, err := m.embedder.Embed(ctx, text)
	metrics.RecordEmbedding(err)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to embed memory content")
		return nil
	}
	return vec
}

// Cosine returns the cosine similarity of a and b, or 0 when it is undefined.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
