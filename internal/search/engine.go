// Package search provides the media search engine: registration of images and
// videos into a persisted index and nearest-neighbour queries against it.
package search

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/medialens/internal/embedding"
	"github.com/hyperjump/medialens/internal/index"
	"github.com/hyperjump/medialens/internal/keyword"
	"github.com/hyperjump/medialens/internal/ledger"
	"github.com/hyperjump/medialens/internal/media"
	"github.com/hyperjump/medialens/internal/persistence"
	"github.com/hyperjump/medialens/internal/storage"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

const (
	defaultFrameBatchSize = 16
	defaultWorkers        = 1
)

// Options configure an Engine. IndexDir is required.
type Options struct {
	IndexDir string
	// FrameInterval is the video sampling spacing in seconds used when a call passes <= 0.
	FrameInterval float64
	// FrameBatchSize is how many frames are embedded per Embedder call.
	FrameBatchSize int
	// Workers bounds parallel vector computation in RegisterDirectory.
	Workers int
	// Lock takes an exclusive lock on IndexDir for the engine's lifetime.
	Lock            bool
	ImageExtensions []string
	VideoExtensions []string
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithManager sets the persistence manager. The default uses no compression.
func WithManager(m *persistence.Manager) Option {
	return func(e *Engine) { e.manager = m }
}

// WithCatalog records every registration in c. The caller keeps ownership of c.
func WithCatalog(c storage.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// Engine composes the embedder, frame sampler, index and persistence into
// register and search operations. Registrations and Clear are serialized by
// writeMu, which spans the in-memory insert and the save that follows it.
type Engine struct {
	opts       Options
	embedder   embedding.Embedder
	sampler    media.FrameSampler
	classifier *media.Classifier
	manager    *persistence.Manager
	catalog    storage.Catalog
	keywords   keyword.KeywordIndex
	logger     *zap.Logger

	index   *index.Index
	lock    *persistence.DirLock
	writeMu sync.Mutex
	closed  bool
}

// Open builds an engine over opts.IndexDir. An existing index there is loaded;
// a missing one starts empty. A corrupt index or one whose dimension differs
// from the embedder's is an error and no engine is returned.
func Open(ctx context.Context, opts Options, embedder embedding.Embedder, sampler media.FrameSampler, options ...Option) (*Engine, error) {
	if embedder == nil || embedder.Dimensions() <= 0 {
		return nil, lenserr.New(lenserr.CodeEngineInvalidInput, lenserr.ErrInvalidInput, "embedder with positive dimensions is required")
	}
	if opts.IndexDir == "" {
		return nil, lenserr.New(lenserr.CodeEngineInvalidInput, lenserr.ErrInvalidInput, "index directory is required")
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = media.DefaultFrameInterval
	}
	if opts.FrameBatchSize <= 0 {
		opts.FrameBatchSize = defaultFrameBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	e := &Engine{
		opts:       opts,
		embedder:   embedder,
		sampler:    sampler,
		classifier: media.NewClassifier(opts.ImageExtensions, opts.VideoExtensions),
	}
	for _, o := range options {
		o(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.manager == nil {
		e.manager = persistence.NewManager(persistence.WithLogger(e.logger))
	}

	if opts.Lock {
		lock, err := persistence.LockDir(opts.IndexDir)
		if err != nil {
			return nil, err
		}
		e.lock = lock
	}

	dim := embedder.Dimensions()
	x, err := e.manager.Load(opts.IndexDir, dim)
	switch {
	case errors.Is(err, lenserr.ErrMissingIndex):
		x, err = index.New(dim)
		if err != nil {
			_ = e.lock.Unlock()
			return nil, err
		}
		e.logger.Info("starting with empty index", zap.String("dir", opts.IndexDir), zap.Int("dim", dim))
	case err != nil:
		_ = e.lock.Unlock()
		return nil, err
	}
	e.index = x

	kw, err := keyword.NewBleveIndex()
	if err != nil {
		_ = e.lock.Unlock()
		return nil, err
	}
	if err := kw.Rebuild(ctx, x.List()); err != nil {
		_ = kw.Close()
		_ = e.lock.Unlock()
		return nil, err
	}
	e.keywords = kw

	e.logger.Info("engine ready",
		zap.String("dir", opts.IndexDir),
		zap.Int("entries", x.Count()),
		zap.Int("dim", dim),
	)
	return e, nil
}

// Dimensions returns the vector length of the index.
func (e *Engine) Dimensions() int {
	return e.index.Dimensions()
}

// IndexDir returns the storage directory.
func (e *Engine) IndexDir() string {
	return e.opts.IndexDir
}

// FrameInterval returns the default sampling interval in seconds.
func (e *Engine) FrameInterval() float64 {
	return e.opts.FrameInterval
}

// Classifier returns the extension classifier used for directory scans.
func (e *Engine) Classifier() *media.Classifier {
	return e.classifier
}

// Stats counts registered entries by kind.
func (e *Engine) Stats() index.Stats {
	return e.index.Stats()
}

// List returns every entry in index order.
func (e *Engine) List() []ledger.Entry {
	return e.index.List()
}

// Get returns the record at i.
func (e *Engine) Get(i int) (ledger.Metadata, error) {
	return e.index.Get(i)
}

// Clear drops every entry and removes the persisted artifacts and catalog rows.
func (e *Engine) Clear(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	n := e.index.Count()
	if err := e.index.Clear(); err != nil {
		return err
	}
	if err := e.manager.Remove(e.opts.IndexDir); err != nil {
		return err
	}
	if e.catalog != nil {
		if err := e.catalog.Clear(ctx); err != nil {
			return err
		}
	}
	if err := e.keywords.Rebuild(ctx, nil); err != nil {
		return err
	}
	e.logger.Info("index cleared", zap.String("dir", e.opts.IndexDir), zap.Int("removed", n))
	return nil
}

// Close releases the keyword index and the directory lock. The embedder and
// catalog belong to the caller. Calling Close again is a no-op.
func (e *Engine) Close() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return errors.Join(e.keywords.Close(), e.lock.Unlock())
}
