package e2e

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// EncodableExtensions are the image formats the fixtures can write.
var EncodableExtensions = []string{".png", ".jpg", ".gif", ".bmp", ".tiff"}

// Solid returns a size x size image filled with c.
func Solid(c color.Color, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// EncodeImage encodes img in the format implied by name's extension.
func EncodeImage(name string, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		err = png.Encode(&buf, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	case ".gif":
		err = gif.Encode(&buf, img, nil)
	case ".bmp":
		err = bmp.Encode(&buf, img)
	case ".tiff":
		err = tiff.Encode(&buf, img, nil)
	default:
		return nil, fmt.Errorf("no encoder for %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
