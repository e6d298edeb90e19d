package vecindex

import (
	"context"
	"sort"
	"sync"

	"github.com/cinelex/rightsgraph/pkg/types"
)

type entry struct {
	vector []float32
	meta   Meta
}

// Memory is an in-memory Index doing exact (brute-force) nearest-neighbor
// search. It stands in for the hosted vector index service in tests and
// small deployments.
type Memory struct {
	mu         sync.RWMutex
	dims       int
	generation int
	entries    map[string]entry
}

// NewMemory creates an index generation with the given dimensionality.
func NewMemory(dims, generation int) *Memory {
	return &Memory{
		dims:       dims,
		generation: generation,
		entries:    make(map[string]entry),
	}
}

// Upsert implements Index. Re-upserting the same node replaces its vector.
func (m *Memory) Upsert(ctx context.Context, nodeID string, vector []float32, meta Meta) error {
	if len(vector) != m.dims {
		return &types.DimensionError{Want: m.dims, Got: len(vector)}
	}
	v := make([]float32, len(vector))
	copy(v, vector)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[nodeID] = entry{vector: v, meta: meta}
	return nil
}

// Query implements Index.
func (m *Memory) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) != m.dims {
		return nil, &types.DimensionError{Want: m.dims, Got: len(vector)}
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	matches := make([]Match, 0, len(m.entries))
	for id, e := range m.entries {
		matches = append(matches, Match{
			NodeID:     id,
			Similarity: Cosine(vector, e.vector),
			Popularity: e.meta.Popularity,
		})
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].Popularity != matches[j].Popularity {
			return matches[i].Popularity > matches[j].Popularity
		}
		return matches[i].NodeID < matches[j].NodeID
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Dimensions implements Index.
func (m *Memory) Dimensions() int { return m.dims }

// Generation implements Index.
func (m *Memory) Generation() int { return m.generation }

// Size implements Index.
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
