package index

import (
	"testing"

	"github.com/hyperjump/medialens/internal/ledger"
	"github.com/hyperjump/medialens/internal/vector"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func image(path string) ledger.Metadata {
	return ledger.Metadata{Kind: ledger.KindImage, SourcePath: path, DisplayName: path}
}

func TestIndex_InsertAndSearchJoinsMetadata(t *testing.T) {
	x, err := New(2)
	require.NoError(t, err)

	i0, err := x.Insert([]float32{1, 0}, image("a.jpg"))
	require.NoError(t, err)
	i1, err := x.Insert([]float32{0, 1}, ledger.Metadata{Kind: ledger.KindVideo, SourcePath: "b.mp4", FrameCount: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, i0)
	assert.Equal(t, 1, i1)

	res, err := x.Search([]float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 1, res[0].Rank)
	assert.Equal(t, "b.mp4", res[0].Metadata.SourcePath)
	assert.Equal(t, 3, res[0].Metadata.FrameCount)
	assert.Equal(t, "a.jpg", res[1].Metadata.SourcePath)
}

func TestIndex_InsertRejectsWrongDimensionWithoutTouchingLedger(t *testing.T) {
	x, _ := New(3)
	_, err := x.Insert([]float32{1, 0}, image("a.jpg"))
	require.ErrorIs(t, err, lenserr.ErrDimensionMismatch)
	assert.Equal(t, 0, x.Count())
	assert.Empty(t, x.List())
}

func TestIndex_InsertBatch(t *testing.T) {
	x, _ := New(2)
	_, _ = x.Insert([]float32{1, 0}, image("a.jpg"))

	idx, err := x.InsertBatch(
		[][]float32{{0, 1}, {1, 0}},
		[]ledger.Metadata{image("b.jpg"), image("c.jpg")},
	)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, idx)

	rec, err := x.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "c.jpg", rec.SourcePath)

	_, err = x.InsertBatch([][]float32{{0, 1}}, nil)
	require.ErrorIs(t, err, lenserr.ErrInvalidInput)
	assert.Equal(t, 3, x.Count())
}

func TestIndex_StatsAndClear(t *testing.T) {
	x, _ := New(2)
	_, _ = x.Insert([]float32{1, 0}, image("a.jpg"))
	_, _ = x.Insert([]float32{1, 0}, image("b.jpg"))
	_, _ = x.Insert([]float32{0, 1}, ledger.Metadata{Kind: ledger.KindVideo})

	assert.Equal(t, Stats{Total: 3, Images: 2, Videos: 1}, x.Stats())

	require.NoError(t, x.Clear())
	assert.Equal(t, 0, x.Count())
	assert.Equal(t, Stats{}, x.Stats())
	res, err := x.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestIndex_GetOutOfRange(t *testing.T) {
	x, _ := New(2)
	_, err := x.Get(0)
	require.ErrorIs(t, err, lenserr.ErrNotFound)
}

func TestRestore_RejectsMismatchedLengths(t *testing.T) {
	store, _ := vector.NewStore(2)
	_, _ = store.Add([]float32{1, 0})
	_, err := Restore(store, ledger.New())
	require.ErrorIs(t, err, lenserr.ErrCorruptIndex)

	x, err := Restore(store, ledger.FromRecords([]ledger.Metadata{image("a.jpg")}))
	require.NoError(t, err)
	assert.Equal(t, 1, x.Count())
}

func TestIndex_View(t *testing.T) {
	x, _ := New(2)
	_, _ = x.Insert([]float32{1, 0}, image("a.jpg"))
	err := x.View(func(store *vector.Store, entries []ledger.Entry) error {
		assert.Equal(t, store.Count(), len(entries))
		return nil
	})
	require.NoError(t, err)
}
