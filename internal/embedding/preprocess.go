package embedding

import (
	"image"

	"golang.org/x/image/draw"
)

// CLIP image normalization constants.
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// PixelValues converts img into a CLIP vision input: the shorter side is
// resized to size with Catmull-Rom, the centre size×size square is cropped, and
// the result is returned as normalized CHW float32 data.
func PixelValues(img image.Image, size int) []float32 {
	cropped := resizeAndCrop(img, size)
	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := cropped.PixOffset(x, y)
			p := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(cropped.Pix[i+c]) / 255
				out[c*plane+p] = (v - clipMean[c]) / clipStd[c]
			}
		}
	}
	return out
}

func resizeAndCrop(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, size, size))
	}
	var rw, rh int
	if w < h {
		rw, rh = size, max(size, h*size/w)
	} else {
		rw, rh = max(size, w*size/h), size
	}
	resized := image.NewRGBA(image.Rect(0, 0, rw, rh))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, b, draw.Src, nil)

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	offset := image.Pt((rw-size)/2, (rh-size)/2)
	draw.Draw(out, out.Bounds(), resized, offset, draw.Src)
	return out
}
