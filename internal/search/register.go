package search

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/medialens/internal/aggregate"
	"github.com/hyperjump/medialens/internal/fileid"
	"github.com/hyperjump/medialens/internal/ledger"
	"github.com/hyperjump/medialens/internal/media"
	"github.com/hyperjump/medialens/internal/storage"
	"github.com/hyperjump/medialens/internal/vector"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// pending is a computed vector and record not yet inserted.
type pending struct {
	vec  []float32
	rec  ledger.Metadata
	info os.FileInfo
}

// RegisterImage embeds the image at path, appends it and saves the index.
func (e *Engine) RegisterImage(ctx context.Context, path string) (int, error) {
	p, err := e.prepareImage(ctx, path)
	if err != nil {
		return 0, err
	}
	indices, err := e.commit(ctx, []*pending{p})
	if len(indices) == 0 {
		return 0, err
	}
	return indices[0], err
}

// RegisterVideo samples frames every intervalSeconds (<= 0 uses the engine
// default), averages their embeddings, appends the result and saves the index.
func (e *Engine) RegisterVideo(ctx context.Context, path string, intervalSeconds float64) (int, error) {
	p, err := e.prepareVideo(ctx, path, intervalSeconds)
	if err != nil {
		return 0, err
	}
	indices, err := e.commit(ctx, []*pending{p})
	if len(indices) == 0 {
		return 0, err
	}
	return indices[0], err
}

// Register dispatches on the file extension.
func (e *Engine) Register(ctx context.Context, path string, intervalSeconds float64) (int, error) {
	kind, ok := e.classifier.Classify(path)
	if !ok {
		return 0, lenserr.New(lenserr.CodeMediaUnsupported, lenserr.ErrInvalidInput,
			"unsupported media extension", lenserr.FieldPath(path))
	}
	if kind == ledger.KindVideo {
		return e.RegisterVideo(ctx, path, intervalSeconds)
	}
	return e.RegisterImage(ctx, path)
}

// RegisterIfChanged registers path unless the catalog shows it was already
// registered from a file of the same size and modification time. It reports
// whether a new entry was added. Without a catalog it always registers.
func (e *Engine) RegisterIfChanged(ctx context.Context, path string, intervalSeconds float64) (int, bool, error) {
	abs, info, err := resolve(path)
	if err != nil {
		return 0, false, err
	}
	if e.catalog != nil {
		entry, err := e.catalog.Get(ctx, abs)
		if err != nil {
			return 0, false, err
		}
		if entry != nil && entry.Unchanged(info.Size(), info.ModTime()) {
			if rec, err := e.index.Get(entry.Index); err == nil && rec.SourcePath == abs {
				e.logger.Debug("skipping unchanged file", zap.String("path", abs), zap.Int("index", entry.Index))
				return entry.Index, false, nil
			}
		}
	}
	idx, err := e.Register(ctx, abs, intervalSeconds)
	if err != nil {
		return 0, false, err
	}
	return idx, true, nil
}

// RegisterDirectory registers every image and then every video under dir,
// each group in lexicographic path order. Vectors are computed by up to
// Options.Workers goroutines; files that fail are logged and skipped. All
// successful files are appended in one batch and saved once.
func (e *Engine) RegisterDirectory(ctx context.Context, dir string, recursive bool, intervalSeconds float64) ([]int, error) {
	images, videos, err := e.scan(dir, recursive)
	if err != nil {
		return nil, err
	}
	paths := append(images, videos...)
	e.logger.Info("registering directory",
		zap.String("dir", dir),
		zap.Int("images", len(images)),
		zap.Int("videos", len(videos)),
	)

	results := make([]*pending, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, path := range paths {
		isVideo := i >= len(images)
		g.Go(func() error {
			var p *pending
			var err error
			if isVideo {
				p, err = e.prepareVideo(gctx, path, intervalSeconds)
			} else {
				p, err = e.prepareImage(gctx, path)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
				return nil
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := make([]*pending, 0, len(results))
	for _, p := range results {
		if p != nil {
			batch = append(batch, p)
		}
	}
	if len(batch) == 0 {
		e.logger.Info("directory registered", zap.String("dir", dir), zap.Int("registered", 0), zap.Int("skipped", len(paths)))
		return []int{}, nil
	}
	indices, err := e.commit(ctx, batch)
	if err != nil {
		return indices, err
	}
	e.logger.Info("directory registered",
		zap.String("dir", dir),
		zap.Int("registered", len(indices)),
		zap.Int("skipped", len(paths)-len(indices)),
	)
	return indices, nil
}

// scan lists known media files in dir, split by kind and sorted.
func (e *Engine) scan(dir string, recursive bool) (images, videos []string, err error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, lenserr.Wrap(err, lenserr.CodeEngineInvalidInput, "invalid directory", lenserr.FieldPath(dir))
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, nil, lenserr.New(lenserr.CodeMediaNotFound, lenserr.ErrNotFound, "directory not found", lenserr.FieldPath(dir))
	}

	add := func(path string) {
		switch kind, ok := e.classifier.Classify(path); {
		case !ok:
		case kind == ledger.KindImage:
			images = append(images, path)
		default:
			videos = append(videos, path)
		}
	}
	if recursive {
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				e.logger.Warn("walk error", zap.String("path", path), zap.Error(err))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				add(path)
			}
			return nil
		})
	} else {
		var entries []fs.DirEntry
		entries, err = os.ReadDir(abs)
		for _, d := range entries {
			if d.Type().IsRegular() {
				add(filepath.Join(abs, d.Name()))
			}
		}
	}
	if err != nil {
		return nil, nil, lenserr.Wrap(err, lenserr.CodeEngineInvalidInput, "failed to read directory", lenserr.FieldPath(dir))
	}
	sort.Strings(images)
	sort.Strings(videos)
	return images, videos, nil
}

func (e *Engine) prepareImage(ctx context.Context, path string) (*pending, error) {
	abs, info, err := resolve(path)
	if err != nil {
		return nil, err
	}
	vec, err := e.imageVector(ctx, abs)
	if err != nil {
		return nil, err
	}
	if err := e.checkVector(vec, abs); err != nil {
		return nil, err
	}
	return &pending{vec: vec, rec: newRecord(ledger.KindImage, abs, info), info: info}, nil
}

func (e *Engine) prepareVideo(ctx context.Context, path string, intervalSeconds float64) (*pending, error) {
	abs, info, err := resolve(path)
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
	if err := e.checkVector(vec, abs); err != nil {
		return nil, err
	}
	rec := newRecord(ledger.KindVideo, abs, info)
	rec.FrameCount = frames
	rec.SamplingIntervalSeconds = intervalSeconds
	return &pending{vec: vec, rec: rec, info: info}, nil
}

// minNorm is the smallest L2 norm accepted from the embedder.
const minNorm = 1e-6

// checkVector rejects a vector that cannot join the index: wrong length, or a
// norm too small to be a direction.
func (e *Engine) checkVector(vec []float32, path string) error {
	if want := e.index.Dimensions(); len(vec) != want {
		return lenserr.New(lenserr.CodeVectorDimension, lenserr.ErrDimensionMismatch,
			"embedding dimension differs from index", append(lenserr.Dimension(want, len(vec)), lenserr.FieldPath(path))...)
	}
	if norm := vector.L2Norm(vec); norm < minNorm || math.IsNaN(norm) {
		return lenserr.New(lenserr.CodeEmbeddingDegenerate, lenserr.ErrDegenerateVector,
			"embedding has no direction", lenserr.FieldPath(path), lenserr.Field("norm", norm))
	}
	return nil
}

func (e *Engine) imageVector(ctx context.Context, path string) ([]float32, error) {
	img, err := media.LoadImage(path)
	if err != nil {
		return nil, err
	}
	vec, err := e.embedder.EmbedImage(ctx, img)
	if err != nil {
		return nil, lenserr.Wrap(err, lenserr.CodeEmbeddingFailure, "failed to embed image", lenserr.FieldPath(path))
	}
	return vec, nil
}

// videoVector samples path, embeds the frames in batches and reduces them to
// one vector. It also returns the number of frames used.
func (e *Engine) videoVector(ctx context.Context, path string, intervalSeconds float64) ([]float32, int, error) {
	if e.sampler == nil {
		return nil, 0, lenserr.New(lenserr.CodeEngineInvalidInput, lenserr.ErrInvalidInput,
			"no frame sampler configured", lenserr.FieldPath(path))
	}
	frames, err := e.sampler.Sample(ctx, path, intervalSeconds)
	if err != nil {
		return nil, 0, err
	}
	if len(frames) == 0 {
		return nil, 0, lenserr.New(lenserr.CodeVideoNoFrames, lenserr.ErrNoFramesExtracted,
			"no frames extracted from video", lenserr.FieldPath(path))
	}

	vecs := make([][]float32, 0, len(frames))
	for start := 0; start < len(frames); start += e.opts.FrameBatchSize {
		end := min(start+e.opts.FrameBatchSize, len(frames))
		chunk, err := e.embedFrames(ctx, frames[start:end])
		if err != nil {
			return nil, 0, lenserr.Wrap(err, lenserr.CodeEmbeddingFailure, "failed to embed frames",
				lenserr.FieldPath(path), lenserr.Field("frames", len(frames)))
		}
		vecs = append(vecs, chunk...)
		e.logger.Debug("frames embedded", zap.String("path", path), zap.Int("done", end), zap.Int("total", len(frames)))
	}
	vec, err := aggregate.Reduce(vecs)
	if err != nil {
		return nil, 0, lenserr.With(err, lenserr.FieldPath(path))
	}
	return vec, len(frames), nil
}

func (e *Engine) embedFrames(ctx context.Context, frames []image.Image) ([][]float32, error) {
	vecs, err := e.embedder.EmbedImages(ctx, frames)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(frames) {
		return nil, lenserr.New(lenserr.CodeEmbeddingFailure, nil, "embedder returned wrong number of vectors",
			lenserr.Field("frames", len(frames)), lenserr.Field("vectors", len(vecs)))
	}
	return vecs, nil
}

// commit appends items in order and saves the index. When the save fails the
// entries stay in memory and their indices are returned along with the error.
func (e *Engine) commit(ctx context.Context, items []*pending) ([]int, error) {
	vecs := make([][]float32, len(items))
	recs := make([]ledger.Metadata, len(items))
	for i, p := range items {
		vecs[i] = p.vec
		recs[i] = p.rec
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	indices, err := e.index.InsertBatch(vecs, recs)
	if err != nil {
		return nil, err
	}
	for i, idx := range indices {
		if err := e.keywords.Add(ctx, idx, recs[i]); err != nil {
			e.logger.Warn("keyword index update failed", zap.Int("index", idx), zap.Error(err))
		}
	}
	if err := e.manager.Save(e.index, e.opts.IndexDir); err != nil {
		return indices, err
	}
	if e.catalog != nil {
		for i, idx := range indices {
			entry := &storage.CatalogEntry{
				Path:         recs[i].SourcePath,
				SizeBytes:    items[i].info.Size(),
				ModTime:      items[i].info.ModTime(),
				Index:        idx,
				Kind:         string(recs[i].Kind),
				RegisteredAt: recs[i].RegisteredAt,
			}
			if err := e.catalog.Upsert(ctx, entry); err != nil {
				e.logger.Warn("catalog update failed", zap.String("path", entry.Path), zap.Error(err))
			}
		}
	}
	for i, idx := range indices {
		e.logger.Debug("registered", zap.Int("index", idx), zap.String("type", string(recs[i].Kind)), zap.String("path", recs[i].SourcePath))
	}
	return indices, nil
}

// resolve returns the absolute path of an existing regular file.
func resolve(path string) (string, os.FileInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, lenserr.Wrap(err, lenserr.CodeEngineInvalidInput, "invalid path", lenserr.FieldPath(path))
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, lenserr.New(lenserr.CodeMediaNotFound, lenserr.ErrNotFound, "media file not found", lenserr.FieldPath(path))
		}
		return "", nil, lenserr.Wrap(err, lenserr.CodeMediaNotFound, "failed to stat media file", lenserr.FieldPath(path))
	}
	if !info.Mode().IsRegular() {
		return "", nil, lenserr.New(lenserr.CodeMediaNotFound, lenserr.ErrNotFound, "not a regular file", lenserr.FieldPath(path))
	}
	return abs, info, nil
}

func newRecord(kind ledger.Kind, abs string, info os.FileInfo) ledger.Metadata {
	return ledger.Metadata{
		Kind:         kind,
		SourcePath:   abs,
		DisplayName:  filepath.Base(abs),
		ID:           fileid.FileDocID(abs),
		SizeBytes:    info.Size(),
		RegisteredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}
