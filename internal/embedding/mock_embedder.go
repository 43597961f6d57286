package embedding

import (
	"context"
	"image"
	"math"

	"github.com/hyperjump/medialens/pkg/utils"
)

// mockGrid is the number of cells per side used to summarize an image.
const mockGrid = 4

// MockEmbedder is a deterministic embedder for tests and model-less runs. Text
// vectors are derived from the text hash; image vectors from the mean colour of
// a coarse grid of cells, so identical images always embed identically.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEmbedder{dimensions: dimensions}
}

// EmbedText returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedImage returns a deterministic embedding from the image's cell colours.
func (e *MockEmbedder) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	features := gridFeatures(img)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		f := features[i%len(features)]
		emb[i] = float32(f*math.Cos(float64(i)*0.37) + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedImages calls EmbedImage for each image.
func (e *MockEmbedder) EmbedImages(ctx context.Context, imgs []image.Image) ([][]float32, error) {
	out := make([][]float32, len(imgs))
	for i, img := range imgs {
		emb, err := e.EmbedImage(ctx, img)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

// gridFeatures returns the mean R, G and B of each grid cell, scaled to [0, 1].
func gridFeatures(img image.Image) []float64 {
	b := img.Bounds()
	out := make([]float64, mockGrid*mockGrid*3)
	if b.Empty() {
		return out
	}
	for gy := 0; gy < mockGrid; gy++ {
		for gx := 0; gx < mockGrid; gx++ {
			x0 := b.Min.X + gx*b.Dx()/mockGrid
			x1 := b.Min.X + (gx+1)*b.Dx()/mockGrid
			y0 := b.Min.Y + gy*b.Dy()/mockGrid
			y1 := b.Min.Y + (gy+1)*b.Dy()/mockGrid
			if x1 == x0 {
				x1 = x0 + 1
			}
			if y1 == y0 {
				y1 = y0 + 1
			}
			var r, g, bl, n float64
			for y := y0; y < y1 && y < b.Max.Y; y++ {
				for x := x0; x < x1 && x < b.Max.X; x++ {
					cr, cg, cb, _ := img.At(x, y).RGBA()
					r += float64(cr)
					g += float64(cg)
					bl += float64(cb)
					n++
				}
			}
			cell := (gy*mockGrid + gx) * 3
			if n > 0 {
				out[cell] = r / n / 0xffff
				out[cell+1] = g / n / 0xffff
				out[cell+2] = bl / n / 0xffff
			}
		}
	}
	return out
}
