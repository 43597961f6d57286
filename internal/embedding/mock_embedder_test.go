package embedding

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
)

func solid(c color.RGBA, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestMockEmbedder_Dimensions(t *testing.T) {
	if got := NewMockEmbedder(0).Dimensions(); got != 512 {
		t.Errorf("default dimensions = %d, want 512", got)
	}
	if got := NewMockEmbedder(64).Dimensions(); got != 64 {
		t.Errorf("dimensions = %d, want 64", got)
	}
}

func TestMockEmbedder_EmbedTextDeterministicUnit(t *testing.T) {
	ctx := context.Background()
	e := NewMockEmbedder(32)
	a, err := e.EmbedText(ctx, "a red car")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.EmbedText(ctx, "a red car")
	c, _ := e.EmbedText(ctx, "a blue boat")
	if math.Abs(norm(a)-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", norm(a))
	}
	if dot(a, b) < 0.9999 {
		t.Errorf("same text should embed identically, dot = %v", dot(a, b))
	}
	if dot(a, c) > 0.9999 {
		t.Error("different text should embed differently")
	}
}

func TestMockEmbedder_EmbedImage(t *testing.T) {
	ctx := context.Background()
	e := NewMockEmbedder(48)
	red := solid(color.RGBA{R: 255, A: 255}, 20, 20)
	redBig := solid(color.RGBA{R: 255, A: 255}, 64, 40)
	blue := solid(color.RGBA{B: 255, A: 255}, 20, 20)

	a, err := e.EmbedImage(ctx, red)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.EmbedImage(ctx, redBig)
	c, _ := e.EmbedImage(ctx, blue)
	if math.Abs(norm(a)-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", norm(a))
	}
	if dot(a, b) < 0.999 {
		t.Errorf("same colour at different sizes should match, dot = %v", dot(a, b))
	}
	if dot(a, c) >= dot(a, b) {
		t.Errorf("red/blue dot %v should be below red/red %v", dot(a, c), dot(a, b))
	}

	batch, err := e.EmbedImages(ctx, []image.Image{red, blue})
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || dot(batch[0], a) < 0.9999 || dot(batch[1], c) < 0.9999 {
		t.Error("EmbedImages should match EmbedImage per item")
	}
}

func TestMockEmbedder_TinyImage(t *testing.T) {
	e := NewMockEmbedder(16)
	v, err := e.EmbedImage(context.Background(), solid(color.RGBA{G: 200, A: 255}, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(norm(v)-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", norm(v))
	}
}
