package search

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/medialens/internal/index"
	"github.com/hyperjump/medialens/internal/keyword"
	"github.com/hyperjump/medialens/internal/models"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// SearchByText returns the k entries closest to the embedding of text.
func (e *Engine) SearchByText(ctx context.Context, text string, k int) ([]index.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, lenserr.New(lenserr.CodeEngineInvalidInput, lenserr.ErrInvalidInput, "query text is empty")
	}
	vec, err := e.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, lenserr.Wrap(err, lenserr.CodeEmbeddingFailure, "failed to embed query text")
	}
	e.logger.Debug("text search", zap.String("query", text), zap.Int("k", k))
	return e.index.Search(vec, k)
}

// SearchByImage returns the k entries closest to the image at path.
func (e *Engine) SearchByImage(ctx context.Context, path string, k int) ([]index.Result, error) {
	abs, _, err := resolve(path)
	if err != nil {
		return nil, err
	}
	vec, err := e.imageVector(ctx, abs)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("image search", zap.String("path", abs), zap.Int("k", k))
	return e.index.Search(vec, k)
}

// SearchByVideo returns the k entries closest to the aggregated frames of the
// video at path, sampled as RegisterVideo would.
func (e *Engine) SearchByVideo(ctx context.Context, path string, intervalSeconds float64, k int) ([]index.Result, error) {
	abs, _, err := resolve(path)
	if err != nil {
		return nil, err
	}
	if intervalSeconds <= 0 {
		intervalSeconds = e.opts.FrameInterval
	}
	vec, frames, err := e.videoVector(ctx, abs, intervalSeconds)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("video search", zap.String("path", abs), zap.Int("frames", frames), zap.Int("k", k))
	return e.index.Search(vec, k)
}

// SearchByName returns up to k entries whose file name or directory matches
// query. Scores are keyword relevance, not similarity. A query with no exact
// match falls back to fuzzy matching on file names.
func (e *Engine) SearchByName(ctx context.Context, query string, k int) ([]index.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, lenserr.New(lenserr.CodeEngineInvalidInput, lenserr.ErrInvalidInput, "query is empty")
	}
	hits, err := e.keywords.Search(ctx, query, k, &keyword.SearchOptions{FuzzyFallback: true})
	if err != nil {
		return nil, err
	}
	out := make([]index.Result, 0, len(hits))
	for _, h := range hits {
		rec, err := e.index.Get(h.Index)
		if err != nil {
			// Cleared between the keyword lookup and the join.
			continue
		}
		out = append(out, index.Result{Rank: len(out) + 1, Score: h.Score, Index: h.Index, Metadata: rec})
	}
	return out, nil
}

// Search runs a validated request against the matching query operation.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	var (
		query   string
		results []index.Result
		err     error
	)
	switch req.Kind() {
	case models.QueryText:
		query = req.Text
		results, err = e.SearchByText(ctx, req.Text, req.Limit)
	case models.QueryImage:
		query = req.ImagePath
		results, err = e.SearchByImage(ctx, req.ImagePath, req.Limit)
	case models.QueryVideo:
		query = req.VideoPath
		results, err = e.SearchByVideo(ctx, req.VideoPath, req.IntervalSec, req.Limit)
	case models.QueryName:
		query = req.Name
		results, err = e.SearchByName(ctx, req.Name, req.Limit)
	default:
		return nil, lenserr.New(lenserr.CodeEngineInvalidInput, lenserr.ErrInvalidInput, "search request has no query")
	}
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Query:     query,
		Kind:      req.Kind(),
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}
