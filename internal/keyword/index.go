// Package keyword provides filename keyword search over registered media.
package keyword

import (
	"context"

	"github.com/hyperjump/medialens/internal/ledger"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// NameBoost multiplies the score contribution from matches in the file name.
	// Values > 1 make name matches rank above directory matches. Default 3.0.
	NameBoost float64
	// FuzzyFallback retries with fuzzy matching when the exact query finds nothing.
	FuzzyFallback bool
	// Fuzziness is the maximum Levenshtein edit distance for the fallback (1 or 2). Default 1.
	Fuzziness int
}

// KeywordIndex defines keyword search operations keyed by ledger index.
type KeywordIndex interface {
	Add(ctx context.Context, index int, md ledger.Metadata) error
	Rebuild(ctx context.Context, entries []ledger.Entry) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	Index int
	Score float64
}
