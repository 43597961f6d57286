// Package embedding maps images and text into a shared unit-vector space.
package embedding

import (
	"context"
	"image"
)

// Embedder produces unit-normalized embeddings for images and text. Every
// vector it returns has length Dimensions().
type Embedder interface {
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)
	EmbedImages(ctx context.Context, imgs []image.Image) ([][]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
