package media

import (
	"bufio"
	"errors"
	"image"
	"os"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// LoadImage decodes the still image at path. Animated GIFs yield their first frame.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, lenserr.New(lenserr.CodeMediaNotFound, lenserr.ErrNotFound,
				"image file not found", lenserr.FieldPath(path))
		}
		return nil, lenserr.Wrap(err, lenserr.CodeMediaDecodeFailure, "failed to open image", lenserr.FieldPath(path))
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, lenserr.Wrap(err, lenserr.CodeMediaDecodeFailure, "failed to decode image", lenserr.FieldPath(path))
	}
	return img, nil
}

// CheckFile returns ErrNotFound unless path is an existing regular file.
func CheckFile(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return lenserr.New(lenserr.CodeMediaNotFound, lenserr.ErrNotFound,
			"media file not found", lenserr.FieldPath(path))
	}
	return nil
}
