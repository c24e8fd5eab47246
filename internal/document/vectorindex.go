package document

import (
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndex wraps an in-process HNSW graph keyed by opaque chunk ids,
// matching the per-Chunk approximate-nearest-neighbor requirement of §4.2.
// coder/hnsw is the pure-Go ANN library used because modernc.org/sqlite has
// no native vector extension.
type VectorIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dim   int

	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64
}

// NewVectorIndex creates an empty cosine-distance HNSW index for the given
// fixed embedding dimension (768 or 1024, per deployment).
func NewVectorIndex(dim int) *VectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.Ml = 0.25
	graph.EfSearch = 20
	return &VectorIndex{
		graph:   graph,
		dim:     dim,
		idToKey: make(map[string]uint64),
		keyToID: make(map[uint64]string),
	}
}

// Upsert adds or replaces the vector for chunkID. Replacement uses lazy
// deletion (orphan the old key rather than mutate the graph), the same
// approach used elsewhere in the retrieval pack to avoid destabilizing
// HNSW's layer structure.
func (v *VectorIndex) Upsert(chunkID string, vec []float32) error {
	if len(vec) != v.dim {
		return fmt.Errorf("document: embedding dimension mismatch: expected %d, got %d", v.dim, len(vec))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if oldKey, ok := v.idToKey[chunkID]; ok {
		delete(v.keyToID, oldKey)
	}

	key := v.nextKey
	v.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	v.graph.Add(hnsw.MakeNode(key, normalized))
	v.idToKey[chunkID] = key
	v.keyToID[key] = chunkID
	return nil
}

// Remove drops chunkID from future search results (lazy deletion).
func (v *VectorIndex) Remove(chunkID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if key, ok := v.idToKey[chunkID]; ok {
		delete(v.keyToID, key)
		delete(v.idToKey, chunkID)
	}
}

// VectorHit is one result from Search.
type VectorHit struct {
	ChunkID    string
	Similarity float32
}

// Search returns the k nearest neighbors to query by cosine similarity.
func (v *VectorIndex) Search(query []float32, k int) ([]VectorHit, error) {
	if len(query) != v.dim {
		return nil, fmt.Errorf("document: query dimension mismatch: expected %d, got %d", v.dim, len(query))
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
	hits := make([]VectorHit, 0, len(nodes))
	for _, node := range nodes {
		chunkID, ok := v.keyToID[node.Key]
		if !ok {
			continue
		}
		distance := v.graph.Distance(normalized, node.Value)
		hits = append(hits, VectorHit{ChunkID: chunkID, Similarity: 1.0 - distance/2.0})
	}
	return hits, nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
