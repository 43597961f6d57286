//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
	"image"
)

// ONNXOptions mirrors the cgo build so callers compile either way.
type ONNXOptions struct {
	VisionModelPath string
	TextModelPath   string
	VocabPath       string
	LibraryPath     string
	Dimensions      int
	ImageSize       int
	MaxTokens       int
}

// ONNXEmbedder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEmbedder struct{}

var errNoCGO = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// NewONNXEmbedder returns an error when built without CGO (ONNX not available).
func NewONNXEmbedder(_ ONNXOptions) (*ONNXEmbedder, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) EmbedImage(context.Context, image.Image) ([]float32, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) EmbedImages(context.Context, []image.Image) ([][]float32, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
