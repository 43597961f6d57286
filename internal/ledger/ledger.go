// Package ledger holds the ordered metadata records that sit alongside the
// vector store rows.
package ledger

import (
	"sync"
	"time"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// Kind is the media type of a record.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Metadata describes one registered media item. JSON keys match the on-disk
// metadata document.
type Metadata struct {
	Kind        Kind   `json:"type"`
	SourcePath  string `json:"path"`
	DisplayName string `json:"filename"`
	// Video only.
	FrameCount              int     `json:"num_frames,omitempty"`
	SamplingIntervalSeconds float64 `json:"frame_interval_sec,omitempty"`

	ID           string    `json:"id,omitempty"`
	SizeBytes    int64     `json:"size_bytes,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Entry pairs a record with its position.
type Entry struct {
	Index    int      `json:"index"`
	Metadata Metadata `json:"metadata"`
}

// Ledger is an append-only list of records. The position of a record is its
// index and never changes until Clear.
type Ledger struct {
	records []Metadata
	mu      sync.RWMutex
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// FromRecords builds a ledger holding records in order.
func FromRecords(records []Metadata) *Ledger {
	return &Ledger{records: append([]Metadata(nil), records...)}
}

// Append adds rec and returns its index.
func (l *Ledger) Append(rec Metadata) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return len(l.records) - 1
}

// AppendBatch adds recs in order and returns the first assigned index.
func (l *Ledger) AppendBatch(recs []Metadata) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := len(l.records)
	l.records = append(l.records, recs...)
	return start
}

// Get returns the record at index.
func (l *Ledger) Get(index int) (Metadata, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.records) {
		return Metadata{}, lenserr.New(lenserr.CodeLedgerNotFound, lenserr.ErrNotFound,
			"no record at index", lenserr.FieldIndex(index), lenserr.Field("len", len(l.records)))
	}
	return l.records[index], nil
}

// List returns every record with its index, in order.
func (l *Ledger) List() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.records))
	for i, rec := range l.records {
		out[i] = Entry{Index: i, Metadata: rec}
	}
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Clear removes every record.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}
