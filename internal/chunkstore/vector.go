package chunkstore

import (
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/fetchgo/internal/errs"
)

// vectorIndex wraps a coder/hnsw graph keyed by the store's string row key,
// adapted from the HNSW vector store pattern: internal uint64 keys are
// lazily deleted (mappings are dropped, the graph node is orphaned) rather
// than removed from the graph, to avoid the known coder/hnsw issue with
// deleting the last node.
type vectorIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	idToKey map[uint64]string
	keyToID map[string]uint64
	nextID  uint64
}

func newVectorIndex(dimensions int) *vectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &vectorIndex{
		graph:      graph,
		dimensions: dimensions,
		idToKey:    make(map[uint64]string),
		keyToID:    make(map[string]uint64),
	}
}

// Upsert adds or replaces the vector for key.
func (v *vectorIndex) Upsert(key string, vec []float32) error {
	if len(vec) != v.dimensions {
		return errs.InvalidVectorLength(len(vec), v.dimensions)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if existing, ok := v.keyToID[key]; ok {
		delete(v.idToKey, existing)
		delete(v.keyToID, key)
	}

	id := v.nextID
	v.nextID++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	v.graph.Add(hnsw.MakeNode(id, normalized))
	v.idToKey[id] = key
	v.keyToID[key] = id
	return nil
}

// Delete lazily evicts key from the graph.
func (v *vectorIndex) Delete(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if id, ok := v.keyToID[key]; ok {
		delete(v.idToKey, id)
		delete(v.keyToID, key)
	}
}

type vectorHit struct {
	Key      string
	Distance float32
	Score    float32
}

// Search returns up to k nearest neighbors, ascending cosine distance.
func (v *vectorIndex) Search(query []float32, k int) ([]vectorHit, error) {
	if len(query) != v.dimensions {
		return nil, errs.InvalidVectorLength(len(query), v.dimensions)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	nodes := v.graph.Search(normalized, k)
	hits := make([]vectorHit, 0, len(nodes))
	for _, node := range nodes {
		key, ok := v.idToKey[node.Key]
		if !ok {
			continue
		}
		dist := v.graph.Distance(normalized, node.Value)
		hits = append(hits, vectorHit{
			Key:      key,
			Distance: dist,
			Score:    1.0 - dist/2.0,
		})
	}
	return hits, nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
