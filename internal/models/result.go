package models

import (
	"github.com/hyperjump/medialens/internal/index"
)

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query     string         `json:"query"`
	Kind      string         `json:"kind"`
	Results   []index.Result `json:"results"`
	Total     int            `json:"total"`
	QueryTime int64          `json:"query_time_ms"`
}

// RegisterResponse lists the indices assigned by a registration.
type RegisterResponse struct {
	Indices []int  `json:"indices"`
	Skipped bool   `json:"skipped,omitempty"` // unchanged since the last registration
	Path    string `json:"path"`
}

// StatsResponse is the index summary returned by the stats endpoint and the info command.
type StatsResponse struct {
	index.Stats
	Dimensions     int     `json:"dimensions"`
	IndexDir       string  `json:"index_dir"`
	FrameInterval  float64 `json:"frame_interval_sec"`
	DiskUsageBytes int64   `json:"disk_usage_bytes,omitempty"`
}
