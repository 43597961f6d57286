// Package index pairs the vector store with the metadata ledger. The two are
// only reachable through paired operations so their row counts cannot drift.
package index

import (
	"sync"

	"github.com/hyperjump/medialens/internal/ledger"
	"github.com/hyperjump/medialens/internal/vector"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// Result is a search hit joined with its record.
type Result struct {
	Rank     int             `json:"rank"`
	Score    float64         `json:"score"`
	Index    int             `json:"index"`
	Metadata ledger.Metadata `json:"metadata"`
}

// Stats counts records by kind.
type Stats struct {
	Total  int `json:"total"`
	Images int `json:"images"`
	Videos int `json:"videos"`
}

// Index is the store and ledger treated as one unit. Writers hold mu
// exclusively across both structures; searches hold it shared.
type Index struct {
	store  *vector.Store
	ledger *ledger.Ledger
	mu     sync.RWMutex
}

// New returns an empty index for vectors of the given dimension.
func New(dimensions int) (*Index, error) {
	store, err := vector.NewStore(dimensions)
	if err != nil {
		return nil, err
	}
	return &Index{store: store, ledger: ledger.New()}, nil
}

// Restore wraps an already populated store and ledger, typically just read
// from disk. Their lengths must agree.
func Restore(store *vector.Store, l *ledger.Ledger) (*Index, error) {
	x := &Index{store: store, ledger: l}
	if err := x.checkLockstep(); err != nil {
		return nil, err
	}
	return x, nil
}

// Dimensions returns the vector length.
func (x *Index) Dimensions() int {
	return x.store.Dimensions()
}

// Insert appends vec and rec at the same position and returns it.
func (x *Index) Insert(vec []float32, rec ledger.Metadata) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	idx, err := x.store.Add(vec)
	if err != nil {
		return 0, err
	}
	if li := x.ledger.Append(rec); li != idx {
		return 0, lenserr.New(lenserr.CodeIndexCorrupt, lenserr.ErrCorruptIndex,
			"ledger index diverged from store", lenserr.Field("store_index", idx), lenserr.Field("ledger_index", li))
	}
	return idx, x.checkLockstep()
}

// InsertBatch appends vecs and recs pairwise. Searches see either the whole
// batch or none of it.
func (x *Index) InsertBatch(vecs [][]float32, recs []ledger.Metadata) ([]int, error) {
	if len(vecs) != len(recs) {
		return nil, lenserr.New(lenserr.CodeEngineInvalidInput, lenserr.ErrInvalidInput,
			"vectors and records length mismatch", lenserr.Field("vectors", len(vecs)), lenserr.Field("records", len(recs)))
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	indices, err := x.store.AddBatch(vecs)
	if err != nil {
		return nil, err
	}
	start := x.ledger.AppendBatch(recs)
	if len(indices) > 0 && indices[0] != start {
		return nil, lenserr.New(lenserr.CodeIndexCorrupt, lenserr.ErrCorruptIndex,
			"ledger index diverged from store", lenserr.Field("store_index", indices[0]), lenserr.Field("ledger_index", start))
	}
	return indices, x.checkLockstep()
}

// Search ranks stored vectors against query and joins each hit with its record.
func (x *Index) Search(query []float32, k int) ([]Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	hits, err := x.store.Search(query, k)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		rec, err := x.ledger.Get(h.Index)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Rank: h.Rank, Score: h.Score, Index: h.Index, Metadata: rec})
	}
	return results, nil
}

// Get returns the record at index.
func (x *Index) Get(index int) (ledger.Metadata, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ledger.Get(index)
}

// List returns all records in index order.
func (x *Index) List() []ledger.Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ledger.List()
}

// Count returns the number of rows.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.store.Count()
}

// Stats scans the ledger and counts records by kind.
func (x *Index) Stats() Stats {
	var st Stats
	for _, e := range x.List() {
		st.Total++
		switch e.Metadata.Kind {
		case ledger.KindImage:
			st.Images++
		case ledger.KindVideo:
			st.Videos++
		}
	}
	return st
}

// Clear drops every row from both structures.
func (x *Index) Clear() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.store.Clear()
	x.ledger.Clear()
	return x.checkLockstep()
}

// View calls fn with the store and records while holding the read lock, so fn
// observes a consistent pair. fn must not retain either argument.
func (x *Index) View(fn func(store *vector.Store, entries []ledger.Entry) error) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return fn(x.store, x.ledger.List())
}

func (x *Index) checkLockstep() error {
	if n, m := x.store.Count(), x.ledger.Len(); n != m {
		return lenserr.New(lenserr.CodeIndexCorrupt, lenserr.ErrCorruptIndex,
			"store and ledger lengths differ", lenserr.Field("rows", n), lenserr.Field("records", m))
	}
	return nil
}
