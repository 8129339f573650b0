package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Hit is a search result; Score is cosine similarity, higher is closer
type Hit struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Store persists document vectors and answers permission-filtered kNN queries
type Store interface {
	Index(ctx context.Context, docs []Document, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, permission string, k int) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	Name() string
}

// MemoryStore is a brute-force cosine store for small corpora and tests.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string]Document
	vectors map[string][]float32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]Document),
		vectors: make(map[string][]float32),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Index(_ context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("index: %d documents but %d vectors", len(docs), len(vectors))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range docs {
		cp := make([]float32, len(vectors[i]))
		copy(cp, vectors[i])
		m.docs[d.ID] = d
		m.vectors[d.ID] = cp
	}
	return nil
}

// Search filters by permission before ranking, so k visible documents are
// returned whenever that many exist.
func (m *MemoryStore) Search(_ context.Context, vector []float32, permission string, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(m.docs))
	for id, d := range m.docs {
		if !d.VisibleTo(permission) {
			continue
		}
		hits = append(hits, Hit{Document: d, Score: cosineSimilarity(vector, m.vectors[id])})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.Ref() < hits[j].Document.Ref()
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

// cosineSimilarity returns a value in [-1, 1]; mismatched dimensions or a
// zero vector score -1.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	s := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, s))
}
