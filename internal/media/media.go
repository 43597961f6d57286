// Package media classifies media files, decodes still images and samples video
// frames through ffmpeg.
package media

import (
	"path/filepath"
	"strings"

	"github.com/hyperjump/medialens/internal/ledger"
)

// DefaultImageExtensions are the still image suffixes registered by directory scans.
var DefaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp", ".tiff", ".gif"}

// DefaultVideoExtensions are the video suffixes registered by directory scans.
var DefaultVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm"}

// Classifier maps file extensions to a media kind. Matching is case-insensitive.
type Classifier struct {
	images map[string]struct{}
	videos map[string]struct{}
}

// NewClassifier builds a classifier. Nil slices fall back to the defaults.
func NewClassifier(imageExts, videoExts []string) *Classifier {
	if imageExts == nil {
		imageExts = DefaultImageExtensions
	}
	if videoExts == nil {
		videoExts = DefaultVideoExtensions
	}
	return &Classifier{images: extSet(imageExts), videos: extSet(videoExts)}
}

func extSet(exts []string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = struct{}{}
	}
	return m
}

// Classify returns the kind of path and whether it is a known media file.
func (c *Classifier) Classify(path string) (ledger.Kind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := c.images[ext]; ok {
		return ledger.KindImage, true
	}
	if _, ok := c.videos[ext]; ok {
		return ledger.KindVideo, true
	}
	return "", false
}

// IsImage reports whether path has an image extension.
func (c *Classifier) IsImage(path string) bool {
	k, ok := c.Classify(path)
	return ok && k == ledger.KindImage
}

// IsVideo reports whether path has a video extension.
func (c *Classifier) IsVideo(path string) bool {
	k, ok := c.Classify(path)
	return ok && k == ledger.KindVideo
}
