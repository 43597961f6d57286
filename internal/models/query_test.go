package models

import (
	"errors"
	"testing"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

func TestSearchRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       SearchRequest
		wantErr   bool
		wantKind  string
		wantLimit int
	}{
		{"empty", SearchRequest{}, true, "", 0},
		{"whitespace text", SearchRequest{Text: "   "}, true, "", 0},
		{"two queries", SearchRequest{Text: "dog", ImagePath: "/a.jpg"}, true, "", 0},
		{"negative interval", SearchRequest{VideoPath: "/a.mp4", IntervalSec: -1}, true, "", 0},
		{"text with default limit", SearchRequest{Text: "a dog"}, false, QueryText, 10},
		{"image keeps limit", SearchRequest{ImagePath: "/a.jpg", Limit: 5}, false, QueryImage, 5},
		{"video caps limit", SearchRequest{VideoPath: "/a.mp4", Limit: 500}, false, QueryVideo, 100},
		{"name negative limit", SearchRequest{Name: "beach", Limit: -3}, false, QueryName, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := req.Validate(10, 100)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, lenserr.ErrInvalidInput) {
					t.Errorf("error should match ErrInvalidInput: %v", err)
				}
				return
			}
			if got := req.Kind(); got != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", got, tt.wantKind)
			}
			if req.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", req.Limit, tt.wantLimit)
			}
		})
	}
}

func TestRegisterRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"missing path", RegisterRequest{}, true},
		{"bad kind", RegisterRequest{Path: "/a.gif", Kind: "audio"}, true},
		{"negative interval", RegisterRequest{Path: "/a.mp4", IntervalSec: -2}, true},
		{"detect kind", RegisterRequest{Path: "/a.jpg"}, false},
		{"explicit video", RegisterRequest{Path: "/a.mp4", Kind: QueryVideo, IntervalSec: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
