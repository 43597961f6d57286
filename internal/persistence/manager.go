// Package persistence saves and loads an index as a matched pair of artifacts:
// a binary vector file and a JSON metadata document.
package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/medialens/internal/index"
	"github.com/hyperjump/medialens/internal/ledger"
	"github.com/hyperjump/medialens/internal/vector"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

const (
	// VectorsFileName is the binary vector artifact inside a storage directory.
	VectorsFileName = "vectors.idx"
	// MetadataFileName is the metadata document inside a storage directory.
	MetadataFileName = "metadata.json"

	lockFileName = ".lock"
)

// Manager writes and reads index artifacts.
type Manager struct {
	compression vector.Compression
	tempRoot    string
	logger      *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithCompression sets the payload compression used by Save.
func WithCompression(c vector.Compression) Option {
	return func(m *Manager) { m.compression = c }
}

// WithTempRoot sets where scratch directories are created. Empty means os.TempDir.
func WithTempRoot(dir string) Option {
	return func(m *Manager) { m.tempRoot = dir }
}

// WithLogger sets a logger for save/load events.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Paths returns the artifact paths for a storage directory.
func Paths(dir string) (vectors, metadata string) {
	return filepath.Join(dir, VectorsFileName), filepath.Join(dir, MetadataFileName)
}

// Exists reports whether both artifacts are present in dir.
func Exists(dir string) bool {
	vecPath, metaPath := Paths(dir)
	return isFile(vecPath) && isFile(metaPath)
}

// Save writes x to dir. Both artifacts are first written to a scratch directory
// and then moved into place; the metadata document is moved last. Both carry
// the same generation so a torn pair is detected by Load.
func (m *Manager) Save(x *index.Index, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return lenserr.Wrap(err, lenserr.CodePersistenceWrite, "failed to create index dir", lenserr.FieldPath(dir))
	}
	tmp, err := newScratch(m.tempRoot)
	if err != nil {
		return lenserr.Wrap(err, lenserr.CodePersistenceWrite, "failed to prepare save")
	}
	defer tmp.Close()

	gen := uuid.New()
	tmpVec, tmpMeta := tmp.path(VectorsFileName), tmp.path(MetadataFileName)
	var rows int
	err = x.View(func(store *vector.Store, entries []ledger.Entry) error {
		rows = store.Count()
		if err := writeFile(tmpVec, func(w io.Writer) error {
			return vector.Encode(w, store, m.compression, gen)
		}); err != nil {
			return fmt.Errorf("write vectors: %w", err)
		}
		doc := &document{
			Version:    documentVersion,
			Generation: gen.String(),
			Dimensions: store.Dimensions(),
			Count:      len(entries),
			Entries:    entries,
		}
		if err := writeFile(tmpMeta, func(w io.Writer) error { return encodeDocument(w, doc) }); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return lenserr.Wrap(err, lenserr.CodePersistenceWrite, "failed to save index", lenserr.FieldPath(dir))
	}

	if err := stagePrevious(dir); err != nil {
		return lenserr.Wrap(err, lenserr.CodePersistenceWrite, "failed to keep previous index", lenserr.FieldPath(dir))
	}
	vecPath, metaPath := Paths(dir)
	if err := replaceFile(tmpVec, vecPath); err != nil {
		return lenserr.Wrap(err, lenserr.CodePersistenceWrite, "failed to move vectors into place", lenserr.FieldPath(vecPath))
	}
	if err := replaceFile(tmpMeta, metaPath); err != nil {
		return lenserr.Wrap(err, lenserr.CodePersistenceWrite, "failed to move metadata into place", lenserr.FieldPath(metaPath))
	}
	syncDir(dir)
	dropPrevious(dir)

	m.logger.Info("index saved",
		zap.String("dir", dir),
		zap.Int("rows", rows),
		zap.String("generation", gen.String()),
		zap.String("compression", m.compression.String()),
	)
	return nil
}

// Load reads the artifact pair in dir. It fails with ErrMissingIndex when
// either artifact is absent, ErrDimensionMismatch when the stored dimension is
// not dimensions (unless dimensions is 0), and ErrCorruptIndex for anything
// that does not decode into a consistent pair. When the pair was torn by an
// interrupted Save and the previous pair was kept, that pair is returned
// instead; the files are left alone until the next Save rewrites them.
func (m *Manager) Load(dir string, dimensions int) (*index.Index, error) {
	vecPath, metaPath := Paths(dir)
	for _, p := range []string{vecPath, metaPath} {
		if !isFile(p) {
			return nil, lenserr.New(lenserr.CodePersistenceMissing, lenserr.ErrMissingIndex,
				"index artifact not found", lenserr.FieldPath(p))
		}
	}
	x, err := m.loadPair(dir, vecPath, metaPath, dimensions)
	if err == nil || !errors.Is(err, lenserr.ErrCorruptIndex) || !hasPrevious(dir) {
		return x, err
	}
	prevVec, prevMeta := prevPaths(dir)
	prev, perr := m.loadPair(dir, prevVec, prevMeta, dimensions)
	if perr != nil {
		m.logger.Warn("previous index unusable", zap.String("dir", dir), zap.Error(perr))
		return nil, err
	}
	m.logger.Warn("index torn by an interrupted save, using previous pair",
		zap.String("dir", dir), zap.Int("rows", prev.Count()), zap.Error(err))
	return prev, nil
}

func (m *Manager) loadPair(dir, vecPath, metaPath string, dimensions int) (*index.Index, error) {
	tmp, err := newScratch(m.tempRoot)
	if err != nil {
		return nil, err
	}
	defer tmp.Close()

	// The decoder only ever sees a path inside the scratch directory.
	tmpVec := tmp.path(VectorsFileName)
	if err := copyFile(vecPath, tmpVec); err != nil {
		return nil, fmt.Errorf("failed to stage vectors: %w", err)
	}
	store, hdr, err := decodeVectors(tmpVec)
	if err != nil {
		return nil, lenserr.With(err, lenserr.FieldPath(vecPath))
	}
	if dimensions > 0 && hdr.Dimensions != dimensions {
		return nil, lenserr.New(lenserr.CodeVectorDimension, lenserr.ErrDimensionMismatch,
			"stored index dimension differs from embedder", append(lenserr.Dimension(dimensions, hdr.Dimensions), lenserr.FieldPath(dir))...)
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, lenserr.Mark(err, lenserr.ErrCorruptIndex, lenserr.CodePersistenceCorrupt,
			"failed to parse metadata", lenserr.FieldPath(metaPath))
	}
	if err := checkPair(hdr, doc, store); err != nil {
		return nil, err
	}

	records := make([]ledger.Metadata, len(doc.Entries))
	for i, e := range doc.Entries {
		records[i] = e.Metadata
	}
	x, err := index.Restore(store, ledger.FromRecords(records))
	if err != nil {
		return nil, err
	}
	m.logger.Info("index loaded",
		zap.String("dir", dir),
		zap.Int("rows", x.Count()),
		zap.Int("dim", hdr.Dimensions),
	)
	return x, nil
}

// Remove deletes both artifacts from dir. Missing files are ignored.
func (m *Manager) Remove(dir string) error {
	vecPath, metaPath := Paths(dir)
	prevVec, prevMeta := prevPaths(dir)
	var errs []error
	for _, p := range []string{metaPath, vecPath, prevMeta, prevVec} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return lenserr.Wrap(err, lenserr.CodePersistenceWrite, "failed to remove index", lenserr.FieldPath(dir))
	}
	m.logger.Info("index removed", zap.String("dir", dir))
	return nil
}

func decodeVectors(path string) (*vector.Store, vector.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, vector.Header{}, err
	}
	defer f.Close()
	return vector.Decode(bufio.NewReaderSize(f, ioBufferSize))
}

func checkPair(hdr vector.Header, doc *document, store *vector.Store) error {
	corrupt := func(msg string, fields ...lenserr.Attr) error {
		return lenserr.New(lenserr.CodePersistenceCorrupt, lenserr.ErrCorruptIndex, msg, fields...)
	}
	if doc.Generation == "" {
		if hdr.Generation != uuid.Nil {
			return corrupt("metadata document has no generation")
		}
	} else {
		gen, err := uuid.Parse(doc.Generation)
		if err != nil || gen != uuid.UUID(hdr.Generation) {
			return corrupt("artifact generations differ",
				lenserr.Field("vectors_generation", uuid.UUID(hdr.Generation).String()),
				lenserr.Field("metadata_generation", doc.Generation))
		}
		if doc.Count != len(doc.Entries) {
			return corrupt("metadata count differs from entries",
				lenserr.Field("count", doc.Count), lenserr.Field("entries", len(doc.Entries)))
		}
	}
	if len(doc.Entries) != store.Count() {
		return corrupt("row count differs between artifacts",
			lenserr.Field("rows", store.Count()), lenserr.Field("records", len(doc.Entries)))
	}
	for i, e := range doc.Entries {
		if e.Index != i {
			return corrupt("metadata entries out of order", lenserr.FieldIndex(i), lenserr.Field("found", e.Index))
		}
	}
	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
