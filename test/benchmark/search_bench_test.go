package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/hyperjump/medialens/internal/aggregate"
	"github.com/hyperjump/medialens/internal/embedding"
	"github.com/hyperjump/medialens/internal/vector"
)

const benchDim = 512

func randomVectors(n int) [][]float32 {
	r := rand.New(rand.NewSource(1))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, benchDim)
		var sum float32
		for j := range v {
			v[j] = float32(r.NormFloat64())
			sum += v[j] * v[j]
		}
		for j := range v {
			v[j] /= float32(math.Sqrt(float64(sum)))
		}
		vecs[i] = v
	}
	return vecs
}

func BenchmarkStoreSearch(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		b.Run(fmt.Sprintf("rows=%d", n), func(b *testing.B) {
			s, _ := vector.NewStore(benchDim)
			vecs := randomVectors(n + 1)
			_, _ = s.AddBatch(vecs[:n])
			query := vecs[n]
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = s.Search(query, 10)
			}
		})
	}
}

func BenchmarkReduceFrames(b *testing.B) {
	frames := randomVectors(60)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = aggregate.Reduce(frames)
	}
}

func BenchmarkEncodeZstd(b *testing.B) {
	s, _ := vector.NewStore(benchDim)
	_, _ = s.AddBatch(randomVectors(2000))
	var buf bytes.Buffer
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		_ = vector.Encode(&buf, s, vector.CompressionZstd, [16]byte{})
	}
}

func BenchmarkMockEmbedder_EmbedImage(b *testing.B) {
	e := embedding.NewMockEmbedder(benchDim)
	img := image.NewRGBA(image.Rect(0, 0, 224, 224))
	for y := 0; y < 224; y++ {
		for x := 0; x < 224; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.EmbedImage(ctx, img)
	}
}

func BenchmarkPixelValues(b *testing.B) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = embedding.PixelValues(img, 224)
	}
}
