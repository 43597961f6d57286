// Package vector provides the flat embedding store: a dense row-major matrix of
// unit vectors searched exhaustively by inner product.
package vector

import (
	"container/heap"
	"sync"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// Hit is a single search hit. Index is the row position in the store.
type Hit struct {
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
	Index int     `json:"index"`
}

// Store holds fixed-dimension vectors in insertion order. Rows are never
// reordered or removed individually; Clear drops all of them.
type Store struct {
	dimensions int
	data       []float32
	rows       int
	mu         sync.RWMutex
}

// NewStore creates an empty store for vectors of the given dimension.
func NewStore(dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, lenserr.New(lenserr.CodeVectorDimension, lenserr.ErrDimensionMismatch,
			"dimensions must be positive", lenserr.Field("dimensions", dimensions))
	}
	return &Store{dimensions: dimensions}, nil
}

// Dimensions returns the fixed vector length.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Add appends vec as the next row and returns its index.
func (s *Store) Add(vec []float32) (int, error) {
	if err := s.checkDim(vec); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.rows
	s.data = append(s.data, vec...)
	s.rows++
	return idx, nil
}

// AddBatch appends vecs as one unit. Every vector is validated before any is
// stored, and readers holding the store's lock never see a partial batch.
func (s *Store) AddBatch(vecs [][]float32) ([]int, error) {
	for _, v := range vecs {
		if err := s.checkDim(v); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.rows
	indices := make([]int, len(vecs))
	for i, v := range vecs {
		s.data = append(s.data, v...)
		indices[i] = start + i
	}
	s.rows += len(vecs)
	return indices, nil
}

// Search returns up to k rows with the highest inner product against query,
// best first. Equal scores rank the lower index first. k larger than Count is
// clamped; an empty store or k <= 0 returns an empty slice.
func (s *Store) Search(query []float32, k int) ([]Hit, error) {
	if err := s.checkDim(query); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || s.rows == 0 {
		return []Hit{}, nil
	}
	if k > s.rows {
		k = s.rows
	}

	h := make(minHeap, 0, k)
	for i := 0; i < s.rows; i++ {
		c := candidate{index: i, score: InnerProduct(query, s.row(i))}
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if c.better(h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	hits := make([]Hit, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		c := heap.Pop(&h).(candidate)
		hits[i] = Hit{Rank: i + 1, Score: c.score, Index: c.index}
	}
	return hits, nil
}

// Clear drops every row. Hits returned earlier are copies and remain valid.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	s.rows = 0
}

// Count returns the number of rows.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows
}

// Row returns a copy of row i.
func (s *Store) Row(i int) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= s.rows {
		return nil, false
	}
	out := make([]float32, s.dimensions)
	copy(out, s.row(i))
	return out, true
}

func (s *Store) row(i int) []float32 {
	off := i * s.dimensions
	return s.data[off : off+s.dimensions]
}

func (s *Store) checkDim(vec []float32) error {
	if len(vec) != s.dimensions {
		return lenserr.New(lenserr.CodeVectorDimension, lenserr.ErrDimensionMismatch,
			"vector dimension mismatch", lenserr.Dimension(s.dimensions, len(vec))...)
	}
	return nil
}

type candidate struct {
	index int
	score float64
}

func (c candidate) better(o candidate) bool {
	if c.score != o.score {
		return c.score > o.score
	}
	return c.index < o.index
}

// minHeap keeps the worst retained candidate at the root.
type minHeap []candidate

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[j].better(h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
