package embedding

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPixelValues_ShapeAndNormalization(t *testing.T) {
	vals := PixelValues(solidImage(40, 20, color.RGBA{R: 255, A: 255}), 8)
	if len(vals) != 3*8*8 {
		t.Fatalf("len=%d", len(vals))
	}
	wantR := (1 - clipMean[0]) / clipStd[0]
	wantG := (0 - clipMean[1]) / clipStd[1]
	if math.Abs(float64(vals[0]-wantR)) > 1e-4 {
		t.Errorf("red channel: got %f want %f", vals[0], wantR)
	}
	if math.Abs(float64(vals[64]-wantG)) > 1e-4 {
		t.Errorf("green channel: got %f want %f", vals[64], wantG)
	}
}

func TestResizeAndCrop_CentersLongSide(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 10))
	// Left third blue, rest white; the centre crop must not contain blue.
	for y := 0; y < 10; y++ {
		for x := 0; x < 30; x++ {
			if x < 10 {
				img.Set(x, y, color.RGBA{B: 255, A: 255})
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	out := resizeAndCrop(img, 10)
	if out.Bounds().Dx() != 10 || out.Bounds().Dy() != 10 {
		t.Fatalf("bounds=%v", out.Bounds())
	}
	r, _, _, _ := out.At(5, 5).RGBA()
	if r < 0xf000 {
		t.Errorf("centre pixel should be white, got red=%x", r)
	}
}
