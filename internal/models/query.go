// Package models defines the request and response shapes shared by the HTTP API and the CLI.
package models

import (
	"strings"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// Query kinds accepted by SearchRequest.
const (
	QueryText  = "text"
	QueryImage = "image"
	QueryVideo = "video"
	QueryName  = "name"
)

// SearchRequest is a search by exactly one of text, an example image, an
// example video, or a filename keyword.
type SearchRequest struct {
	Text        string  `json:"text,omitempty"`
	ImagePath   string  `json:"image_path,omitempty"`
	VideoPath   string  `json:"video_path,omitempty"`
	Name        string  `json:"name,omitempty"`
	Limit       int     `json:"limit,omitempty"`
	IntervalSec float64 `json:"interval_sec,omitempty"` // video queries only
}

// Kind returns which query field is set. Validate guarantees exactly one.
func (q *SearchRequest) Kind() string {
	switch {
	case q.Text != "":
		return QueryText
	case q.ImagePath != "":
		return QueryImage
	case q.VideoPath != "":
		return QueryVideo
	case q.Name != "":
		return QueryName
	}
	return ""
}

// Validate checks that exactly one query is given and normalizes Limit:
// 0 or negative becomes defaultLimit, anything above maxLimit is capped.
func (q *SearchRequest) Validate(defaultLimit, maxLimit int) error {
	q.Text = strings.TrimSpace(q.Text)
	q.Name = strings.TrimSpace(q.Name)
	set := 0
	for _, s := range []string{q.Text, q.ImagePath, q.VideoPath, q.Name} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput,
			"exactly one of text, image_path, video_path or name is required", lenserr.Field("given", set))
	}
	if q.IntervalSec < 0 {
		return lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput,
			"interval_sec must not be negative", lenserr.Field("interval_sec", q.IntervalSec))
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// RegisterRequest registers one media file. Kind is "image", "video" or empty
// to detect it from the extension.
type RegisterRequest struct {
	Path        string  `json:"path"`
	Kind        string  `json:"kind,omitempty"`
	IntervalSec float64 `json:"interval_sec,omitempty"`
}

// Validate checks the request fields.
func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Path) == "" {
		return lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput, "path is required")
	}
	switch r.Kind {
	case "", QueryImage, QueryVideo:
	default:
		return lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput,
			"kind must be image or video", lenserr.Field("kind", r.Kind))
	}
	if r.IntervalSec < 0 {
		return lenserr.New(lenserr.CodeServerRequestInvalid, lenserr.ErrInvalidInput,
			"interval_sec must not be negative", lenserr.Field("interval_sec", r.IntervalSec))
	}
	return nil
}

// RegisterDirectoryRequest registers every media file in a directory.
type RegisterDirectoryRequest struct {
	Path        string  `json:"path"`
	Recursive   bool    `json:"recursive"`
	IntervalSec float64 `json:"interval_sec,omitempty"`
}
