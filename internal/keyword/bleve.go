package keyword

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/medialens/internal/ledger"
)

// nameDocument is what gets indexed for one record.
type nameDocument struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// BleveIndex implements KeywordIndex with an in-memory Bleve index. The ledger
// is the source of truth, so the index is rebuilt from it on open rather than
// persisted.
type BleveIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewBleveIndex creates an empty in-memory index.
func NewBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so "cats" does not match "cat".
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("path", textFieldMapping)
	docMapping.AddFieldMappingsAt("kind", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("media", docMapping)
	im.DefaultType = "media"
	im.DefaultMapping = docMapping
	return im
}

// Add indexes one record under its ledger index.
func (b *BleveIndex) Add(ctx context.Context, index int, md ledger.Metadata) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.Index(strconv.Itoa(index), toDocument(md))
}

// Rebuild replaces the index contents with entries.
func (b *BleveIndex) Rebuild(ctx context.Context, entries []ledger.Entry) error {
	fresh, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return fmt.Errorf("failed to create Bleve index: %w", err)
	}
	batch := fresh.NewBatch()
	for _, e := range entries {
		if err := batch.Index(strconv.Itoa(e.Index), toDocument(e.Metadata)); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("failed to index entry %d: %w", e.Index, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("failed to apply batch: %w", err)
	}

	b.mu.Lock()
	old := b.index
	b.index = fresh
	b.mu.Unlock()
	return old.Close()
}

// Search matches query against file names and directories. Name matches are
// boosted. Equal scores rank the lower index first.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	nameBoost := 3.0
	fuzziness := 1
	fallback := false
	if opts != nil {
		if opts.NameBoost > 0 {
			nameBoost = opts.NameBoost
		}
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
		fallback = opts.FuzzyFallback
	}
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return []*KeywordResult{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	nq := bleve.NewMatchQuery(query)
	nq.SetField("name")
	nq.SetBoost(nameBoost)
	pq := bleve.NewMatchQuery(query)
	pq.SetField("path")
	out, err := b.run(ctx, bleve.NewDisjunctionQuery(nq, pq), limit)
	if err != nil || len(out) > 0 || !fallback {
		return out, err
	}
	return b.run(ctx, buildFuzzyQuery(query, fuzziness, "name"), limit)
}

func (b *BleveIndex) run(ctx context.Context, q blevequery.Query, limit int) ([]*KeywordResult, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		idx, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		out = append(out, &KeywordResult{Index: idx, Score: hit.Score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

// DocCount returns the total number of records in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}

func toDocument(md ledger.Metadata) nameDocument {
	name := md.DisplayName
	if name == "" {
		name = filepath.Base(md.SourcePath)
	}
	return nameDocument{
		Name: splitName(strings.TrimSuffix(name, filepath.Ext(name))),
		Path: splitName(filepath.Dir(md.SourcePath)),
		Kind: string(md.Kind),
	}
}

// splitName turns separators used in file names (underscores, dashes, dots,
// path separators) into spaces so each part is its own term.
func splitName(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}), " ")
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(splitName(query)))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries for each term in the query.
// If field is empty, searches all fields; otherwise restricts to the specified field.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}

	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}
