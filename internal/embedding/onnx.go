//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/medialens/pkg/utils"
)

// ONNX input and output names of the exported CLIP vision and text towers.
const (
	visionInput  = "pixel_values"
	visionOutput = "image_embeds"
	textIDsInput = "input_ids"
	textMask     = "attention_mask"
	textOutput   = "text_embeds"
)

// ONNXOptions configures a CLIP embedder backed by ONNX Runtime.
type ONNXOptions struct {
	VisionModelPath string
	TextModelPath   string
	VocabPath       string // optional; hashed tokens are used when empty
	LibraryPath     string // optional onnxruntime shared library
	Dimensions      int
	ImageSize       int
	MaxTokens       int
}

// ONNXEmbedder runs CLIP image and text towers through ONNX Runtime. It
// requires CGO and the onnxruntime shared library. Each tower has pre-allocated
// tensors guarded by its own mutex.
type ONNXEmbedder struct {
	dimensions int
	imageSize  int
	maxTokens  int
	tokenizer  Tokenizer

	vision       *ort.AdvancedSession
	pixelTensor  *ort.Tensor[float32]
	imageOutput  *ort.Tensor[float32]
	visionMu     sync.Mutex
	text         *ort.AdvancedSession
	idsTensor    *ort.Tensor[int64]
	maskTensor   *ort.Tensor[int64]
	textOutputT  *ort.Tensor[float32]
	textMu       sync.Mutex
	destroyables []interface{ Destroy() error }
}

// NewONNXEmbedder creates the two sessions. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(opts ONNXOptions) (*ONNXEmbedder, error) {
	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	if opts.ImageSize <= 0 {
		opts.ImageSize = 224
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 77
	}

	e := &ONNXEmbedder{
		dimensions: opts.Dimensions,
		imageSize:  opts.ImageSize,
		maxTokens:  opts.MaxTokens,
		tokenizer:  &SimpleTokenizer{},
	}
	if opts.VocabPath != "" {
		tok, err := LoadVocabTokenizer(opts.VocabPath)
		if err != nil {
			return nil, err
		}
		e.tokenizer = tok
	}
	if err := e.initVision(opts.VisionModelPath); err != nil {
		_ = e.Close()
		return nil, err
	}
	if err := e.initText(opts.TextModelPath); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *ONNXEmbedder) initVision(modelPath string) error {
	s := int64(e.imageSize)
	pixels, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, s, s))
	if err != nil {
		return fmt.Errorf("failed to create pixel_values tensor: %w", err)
	}
	e.pixelTensor = pixels
	e.destroyables = append(e.destroyables, pixels)

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.dimensions)))
	if err != nil {
		return fmt.Errorf("failed to create image output tensor: %w", err)
	}
	e.imageOutput = out
	e.destroyables = append(e.destroyables, out)

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{visionInput}, []string{visionOutput},
		[]ort.ArbitraryTensor{pixels}, []ort.ArbitraryTensor{out}, nil)
	if err != nil {
		return fmt.Errorf("failed to create vision session: %w", err)
	}
	e.vision = session
	e.destroyables = append(e.destroyables, session)
	return nil
}

func (e *ONNXEmbedder) initText(modelPath string) error {
	shape := ort.NewShape(1, int64(e.maxTokens))
	ids, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		return fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	e.idsTensor = ids
	e.destroyables = append(e.destroyables, ids)

	mask, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		return fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	e.maskTensor = mask
	e.destroyables = append(e.destroyables, mask)

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.dimensions)))
	if err != nil {
		return fmt.Errorf("failed to create text output tensor: %w", err)
	}
	e.textOutputT = out
	e.destroyables = append(e.destroyables, out)

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{textIDsInput, textMask}, []string{textOutput},
		[]ort.ArbitraryTensor{ids, mask}, []ort.ArbitraryTensor{out}, nil)
	if err != nil {
		return fmt.Errorf("failed to create text session: %w", err)
	}
	e.text = session
	e.destroyables = append(e.destroyables, session)
	return nil
}

// EmbedImage runs the vision tower on img.
func (e *ONNXEmbedder) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pixels := PixelValues(img, e.imageSize)

	e.visionMu.Lock()
	defer e.visionMu.Unlock()
	copy(e.pixelTensor.GetData(), pixels)
	if err := e.vision.Run(); err != nil {
		return nil, fmt.Errorf("vision inference failed: %w", err)
	}
	emb := make([]float32, e.dimensions)
	copy(emb, e.imageOutput.GetData())
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedImages embeds each image in order.
func (e *ONNXEmbedder) EmbedImages(ctx context.Context, imgs []image.Image) ([][]float32, error) {
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

// EmbedText runs the text tower on text.
func (e *ONNXEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, mask := e.tokenizer.Tokenize(text, e.maxTokens)

	e.textMu.Lock()
	defer e.textMu.Unlock()
	copy(e.idsTensor.GetData(), ids)
	copy(e.maskTensor.GetData(), mask)
	if err := e.text.Run(); err != nil {
		return nil, fmt.Errorf("text inference failed: %w", err)
	}
	emb := make([]float32, e.dimensions)
	copy(emb, e.textOutputT.GetData())
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys sessions and tensors, sessions first.
func (e *ONNXEmbedder) Close() error {
	var first error
	for i := len(e.destroyables) - 1; i >= 0; i-- {
		if err := e.destroyables[i].Destroy(); err != nil && first == nil {
			first = err
		}
	}
	e.destroyables = nil
	e.vision, e.text = nil, nil
	return first
}
