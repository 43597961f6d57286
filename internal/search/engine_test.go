package search

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/medialens/internal/aggregate"
	"github.com/hyperjump/medialens/internal/embedding"
	"github.com/hyperjump/medialens/internal/ledger"
	"github.com/hyperjump/medialens/internal/media"
	"github.com/hyperjump/medialens/internal/persistence"
	"github.com/hyperjump/medialens/internal/storage"
	"github.com/hyperjump/medialens/internal/vector"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

const testDim = 32

var (
	red    = color.RGBA{R: 230, G: 20, B: 20, A: 255}
	green  = color.RGBA{R: 20, G: 200, B: 40, A: 255}
	blue   = color.RGBA{R: 10, G: 30, B: 220, A: 255}
	yellow = color.RGBA{R: 240, G: 230, B: 10, A: 255}
)

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writeImage(t *testing.T, path string, c color.Color) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solid(c)))
	require.NoError(t, f.Close())
	return path
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

type fixture struct {
	dir     string
	sampler *media.StaticSampler
	logs    *observer.ObservedLogs
	opts    Options
	extra   []Option
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	dir := t.TempDir()
	return &fixture{
		dir:     dir,
		sampler: &media.StaticSampler{Frames: map[string][]image.Image{}},
		logs:    logs,
		opts:    Options{IndexDir: filepath.Join(dir, "index"), FrameBatchSize: 3, Workers: 3},
		extra: []Option{
			WithLogger(zap.New(core)),
			WithManager(persistence.NewManager(persistence.WithTempRoot(t.TempDir()))),
		},
	}
}

func (f *fixture) open(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(context.Background(), f.opts, embedding.NewMockEmbedder(testDim), f.sampler, f.extra...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func (f *fixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.dir, "media"}, parts...)...)
}

func row(t *testing.T, e *Engine, i int) []float32 {
	t.Helper()
	var out []float32
	require.NoError(t, e.index.View(func(s *vector.Store, _ []ledger.Entry) error {
		r, ok := s.Row(i)
		require.True(t, ok)
		out = r
		return nil
	}))
	return out
}

func TestOpen_validatesInput(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, Options{}, embedding.NewMockEmbedder(8), nil)
	require.ErrorIs(t, err, lenserr.ErrInvalidInput)
	_, err = Open(ctx, Options{IndexDir: t.TempDir()}, nil, nil)
	require.ErrorIs(t, err, lenserr.ErrInvalidInput)
}

func TestOpen_emptyLocation(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	assert.Equal(t, testDim, e.Dimensions())
	assert.Equal(t, 0, e.Stats().Total)
	assert.Equal(t, media.DefaultFrameInterval, e.FrameInterval())
}

func TestRegisterImage_identicalImageRanksFirst(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	ctx := context.Background()

	a := writeImage(t, f.path("a.png"), red)
	for i, p := range []string{a, writeImage(t, f.path("b.png"), green), writeImage(t, f.path("c.png"), blue)} {
		idx, err := e.RegisterImage(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}

	query := writeImage(t, filepath.Join(t.TempDir(), "copy.png"), red)
	res, err := e.SearchByImage(ctx, query, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, 1, res[0].Rank)
	assert.Equal(t, 0, res[0].Index)
	assert.Equal(t, a, res[0].Metadata.SourcePath)
	assert.Equal(t, "a.png", res[0].Metadata.DisplayName)
	assert.GreaterOrEqual(t, res[0].Score, 0.999)
	assert.Less(t, res[1].Score, res[0].Score)

	rec := res[0].Metadata
	assert.Equal(t, ledger.KindImage, rec.Kind)
	assert.NotEmpty(t, rec.ID)
	assert.Positive(t, rec.SizeBytes)
	assert.False(t, rec.RegisteredAt.IsZero())
	assert.True(t, persistence.Exists(f.opts.IndexDir))
}

func TestRegisterImage_errors(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	ctx := context.Background()

	_, err := e.RegisterImage(ctx, f.path("missing.png"))
	require.ErrorIs(t, err, lenserr.ErrNotFound)

	bad := writeFile(t, f.path("bad.jpg"), "not a jpeg")
	_, err = e.RegisterImage(ctx, bad)
	require.Error(t, err)
	assert.Equal(t, lenserr.CodeMediaDecodeFailure, lenserr.CodeOf(err))
	assert.Equal(t, 0, e.Stats().Total)
	assert.False(t, persistence.Exists(f.opts.IndexDir))
}

func TestRegisterVideo_storesNormalizedMeanOfFrames(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	ctx := context.Background()

	video := writeFile(t, f.path("clip.mp4"), "video")
	frames := []image.Image{solid(red), solid(green), solid(blue), solid(yellow)}
	f.sampler.Frames[video] = frames

	idx, err := e.RegisterVideo(ctx, video, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	rec, err := e.Get(idx)
	require.NoError(t, err)
	assert.Equal(t, ledger.KindVideo, rec.Kind)
	assert.Equal(t, 4, rec.FrameCount)
	assert.Equal(t, media.DefaultFrameInterval, rec.SamplingIntervalSeconds)

	emb := embedding.NewMockEmbedder(testDim)
	perFrame, err := emb.EmbedImages(ctx, frames)
	require.NoError(t, err)
	want, err := aggregate.Reduce(perFrame)
	require.NoError(t, err)
	got := row(t, e, idx)
	require.Len(t, got, testDim)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-6)
	}
	assert.InDelta(t, 1.0, vector.L2Norm(got), 1e-5)

	res, err := e.SearchByVideo(ctx, video, 0, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.InDelta(t, 1.0, res[0].Score, 1e-5)
}

func TestRegisterVideo_customInterval(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	video := writeFile(t, f.path("clip.webm"), "video")
	f.sampler.Frames[video] = []image.Image{solid(red)}

	idx, err := e.RegisterVideo(context.Background(), video, 2.5)
	require.NoError(t, err)
	rec, _ := e.Get(idx)
	assert.Equal(t, 2.5, rec.SamplingIntervalSeconds)
	assert.Equal(t, 1, rec.FrameCount)
}

func TestRegisterVideo_noFrames(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	video := writeFile(t, f.path("empty.mp4"), "video")

	_, err := e.RegisterVideo(context.Background(), video, 0)
	require.ErrorIs(t, err, lenserr.ErrNoFramesExtracted)
	assert.Equal(t, lenserr.CodeVideoNoFrames, lenserr.CodeOf(err))
	assert.Equal(t, 0, e.Stats().Total)
}

func TestRegisterVideo_unreadableStream(t *testing.T) {
	f := newFixture(t)
	missing := filepath.Join(f.dir, "bin")
	sampler := media.NewFFmpegSampler(filepath.Join(missing, "ffmpeg"), filepath.Join(missing, "ffprobe"), nil)
	e, err := Open(context.Background(), f.opts, embedding.NewMockEmbedder(testDim), sampler, f.extra...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	video := writeFile(t, f.path("broken.mp4"), "not a video")

	_, err = e.RegisterVideo(context.Background(), video, 0)
	require.ErrorIs(t, err, lenserr.ErrNoFramesExtracted)
	assert.Equal(t, 400, lenserr.HTTPStatus(err))

	_, err = e.SearchByVideo(context.Background(), video, 0, 5)
	require.ErrorIs(t, err, lenserr.ErrNoFramesExtracted)
	assert.Equal(t, 0, e.Stats().Total)
}

func TestRegisterDirectory_skipsCorruptFiles(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)

	writeImage(t, f.path("one.png"), red)
	writeImage(t, f.path("two.png"), green)
	writeFile(t, f.path("three.jpg"), "corrupt")
	writeFile(t, f.path("notes.txt"), "ignored")

	indices, err := e.RegisterDirectory(context.Background(), f.path(), false, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, indices)
	assert.Equal(t, 2, e.Stats().Total)
	assert.Equal(t, 1, f.logs.FilterMessage("skipping file").Len())

	entries := e.List()
	assert.Equal(t, "one.png", entries[0].Metadata.DisplayName)
	assert.Equal(t, "two.png", entries[1].Metadata.DisplayName)
}

// faultyEmbedder returns a short vector for blue images and a zero vector for
// yellow ones.
type faultyEmbedder struct {
	*embedding.MockEmbedder
}

func (f faultyEmbedder) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	switch {
	case sameColor(img.At(0, 0), blue):
		return make([]float32, testDim-1), nil
	case sameColor(img.At(0, 0), yellow):
		return make([]float32, testDim), nil
	}
	return f.MockEmbedder.EmbedImage(ctx, img)
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}

func TestRegisterDirectory_skipsBadEmbeddings(t *testing.T) {
	f := newFixture(t)
	e, err := Open(context.Background(), f.opts, faultyEmbedder{embedding.NewMockEmbedder(testDim)}, f.sampler, f.extra...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	writeImage(t, f.path("a.png"), red)
	writeImage(t, f.path("b.png"), blue)
	writeImage(t, f.path("c.png"), yellow)
	writeImage(t, f.path("d.png"), green)

	indices, err := e.RegisterDirectory(context.Background(), f.path(), false, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, indices)
	assert.Equal(t, 2, f.logs.FilterMessage("skipping file").Len())
	var names []string
	for _, en := range e.List() {
		names = append(names, en.Metadata.DisplayName)
	}
	assert.Equal(t, []string{"a.png", "d.png"}, names)

	_, err = e.RegisterImage(context.Background(), f.path("b.png"))
	require.ErrorIs(t, err, lenserr.ErrDimensionMismatch)
	_, err = e.RegisterImage(context.Background(), f.path("c.png"))
	require.ErrorIs(t, err, lenserr.ErrDegenerateVector)
	assert.Equal(t, 2, e.Stats().Total)
}

func TestRegisterDirectory_imagesThenVideosInPathOrder(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	f.sampler.Default = []image.Image{solid(blue), solid(yellow)}

	writeImage(t, f.path("b.png"), red)
	writeFile(t, f.path("a.mp4"), "video")
	writeImage(t, f.path("a.png"), green)
	writeImage(t, f.path("sub", "c.jpg"), blue)
	writeFile(t, f.path("sub", "z.mov"), "video")

	indices, err := e.RegisterDirectory(context.Background(), f.path(), true, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, indices)

	var names []string
	for _, en := range e.List() {
		names = append(names, en.Metadata.DisplayName)
	}
	assert.Equal(t, []string{"a.png", "b.png", "c.jpg", "a.mp4", "z.mov"}, names)

	stats := e.Stats()
	assert.Equal(t, 3, stats.Images)
	assert.Equal(t, 2, stats.Videos)
	rec, _ := e.Get(3)
	assert.Equal(t, 5.0, rec.SamplingIntervalSeconds)
	assert.Equal(t, 2, rec.FrameCount)
}

func TestRegisterDirectory_nonRecursiveAndMissing(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	writeImage(t, f.path("top.png"), red)
	writeImage(t, f.path("sub", "deep.png"), green)

	indices, err := e.RegisterDirectory(context.Background(), f.path(), false, 0)
	require.NoError(t, err)
	assert.Len(t, indices, 1)

	_, err = e.RegisterDirectory(context.Background(), f.path("nope"), true, 0)
	require.ErrorIs(t, err, lenserr.ErrNotFound)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.Mkdir(empty, 0755))
	indices, err = e.RegisterDirectory(context.Background(), empty, true, 0)
	require.NoError(t, err)
	assert.NotNil(t, indices)
	assert.Empty(t, indices)
}

func TestRegisterDirectory_cancelled(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	writeFile(t, f.path("a.mp4"), "video")
	f.sampler.Default = []image.Image{solid(red)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RegisterDirectory(ctx, f.path(), true, 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, e.Stats().Total)
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	catalog, err := storage.NewSQLiteCatalog(filepath.Join(f.dir, "catalog.db"))
	require.NoError(t, err)
	defer catalog.Close()
	f.extra = append(f.extra, WithCatalog(catalog))
	e := f.open(t)
	ctx := context.Background()

	for i, c := range []color.Color{red, green, blue} {
		_, err := e.RegisterImage(ctx, writeImage(t, f.path(string(rune('a'+i))+".png"), c))
		require.NoError(t, err)
	}
	require.Equal(t, 3, e.Stats().Total)

	require.NoError(t, e.Clear(ctx))
	assert.Equal(t, 0, e.Stats().Total)
	assert.False(t, persistence.Exists(f.opts.IndexDir))
	n, err := catalog.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	res, err := e.SearchByText(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, res)
	res, err = e.SearchByName(ctx, "a", 5)
	require.NoError(t, err)
	assert.Empty(t, res)

	idx, err := e.RegisterImage(ctx, f.path("a.png"))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestReopenRestoresIndex(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	ctx := context.Background()

	writeImage(t, f.path("sunset_beach.png"), red)
	writeImage(t, f.path("forest.png"), green)
	_, err := e.RegisterDirectory(ctx, f.path(), false, 0)
	require.NoError(t, err)
	before := e.List()
	require.NoError(t, e.Close())

	again := f.open(t)
	assert.Equal(t, before, again.List())
	assert.Equal(t, 2, again.Stats().Total)

	res, err := again.SearchByName(ctx, "beach", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "sunset_beach.png", res[0].Metadata.DisplayName)
}

func TestOpen_dimensionMismatch(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	_, err := e.RegisterImage(context.Background(), writeImage(t, f.path("a.png"), red))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = Open(context.Background(), f.opts, embedding.NewMockEmbedder(testDim*2), f.sampler, f.extra...)
	require.ErrorIs(t, err, lenserr.ErrDimensionMismatch)
}

func TestOpen_corruptIndexIsFatal(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	_, err := e.RegisterImage(context.Background(), writeImage(t, f.path("a.png"), red))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	writeFile(t, filepath.Join(f.opts.IndexDir, persistence.MetadataFileName), "{broken")
	_, err = Open(context.Background(), f.opts, embedding.NewMockEmbedder(testDim), f.sampler, f.extra...)
	require.ErrorIs(t, err, lenserr.ErrCorruptIndex)
}

func TestSearchByText(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	ctx := context.Background()

	_, err := e.SearchByText(ctx, "  ", 5)
	require.ErrorIs(t, err, lenserr.ErrInvalidInput)

	res, err := e.SearchByText(ctx, "a red square", 5)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)

	_, _ = e.RegisterImage(ctx, writeImage(t, f.path("a.png"), red))
	_, _ = e.RegisterImage(ctx, writeImage(t, f.path("b.png"), blue))
	res, err = e.SearchByText(ctx, "a red square", 10)
	require.NoError(t, err)
	assert.Len(t, res, 2)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)
}

func TestRegisterIfChanged(t *testing.T) {
	f := newFixture(t)
	catalog, err := storage.NewSQLiteCatalog(filepath.Join(f.dir, "catalog.db"))
	require.NoError(t, err)
	defer catalog.Close()
	f.extra = append(f.extra, WithCatalog(catalog))
	e := f.open(t)
	ctx := context.Background()

	p := writeImage(t, f.path("a.png"), red)
	idx, added, err := e.RegisterIfChanged(ctx, p, 0)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 0, idx)

	idx, added, err = e.RegisterIfChanged(ctx, p, 0)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, e.Stats().Total)

	// A rewritten file of a different size is registered again.
	f2 := image.NewRGBA(image.Rect(0, 0, 40, 40))
	out, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, png.Encode(out, f2))
	require.NoError(t, out.Close())

	idx, added, err = e.RegisterIfChanged(ctx, p, 0)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, idx)

	_, _, err = e.RegisterIfChanged(ctx, writeFile(t, f.path("x.txt"), "x"), 0)
	require.ErrorIs(t, err, lenserr.ErrInvalidInput)
}

func TestRegister_dispatchesByExtension(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	video := writeFile(t, f.path("v.MP4"), "video")
	f.sampler.Frames[video] = []image.Image{solid(green)}

	idx, err := e.Register(context.Background(), video, 0)
	require.NoError(t, err)
	rec, _ := e.Get(idx)
	assert.Equal(t, ledger.KindVideo, rec.Kind)
}
