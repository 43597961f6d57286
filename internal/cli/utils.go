// Package cli provides output helpers for the medialens command line.
package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"

	"github.com/hyperjump/medialens/internal/ledger"
	"github.com/hyperjump/medialens/internal/media"
	"github.com/hyperjump/medialens/internal/models"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
	"github.com/hyperjump/medialens/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", lenserr.New(lenserr.CodeCLIInputInvalid, lenserr.ErrInvalidInput,
		"unknown output format (supported: text, json)", lenserr.Field("format", s))
}

const maxPathWidth = 72

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	rankStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(20)
)

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Found %d results for %s query %q in %dms",
		response.Total, response.Kind, response.Query, response.QueryTime)))
	if len(response.Results) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No matches."))
		return nil
	}
	for _, r := range response.Results {
		fmt.Fprintf(w, "%s %s %s %s\n",
			rankStyle.Render(fmt.Sprintf("%3d.", r.Rank)),
			scoreStyle.Render(fmt.Sprintf("%.4f", r.Score)),
			kindStyle.Render(fmt.Sprintf("[%s]", r.Metadata.Kind)),
			r.Metadata.DisplayName,
		)
		fmt.Fprintf(w, "     %s\n", dimStyle.Render(fmt.Sprintf("#%d %s%s",
			r.Index, utils.TruncatePath(r.Metadata.SourcePath, maxPathWidth), videoSuffix(r.Metadata))))
	}
	return nil
}

func videoSuffix(md ledger.Metadata) string {
	if md.Kind != ledger.KindVideo {
		return ""
	}
	return fmt.Sprintf(" (%d frames @ %gs)", md.FrameCount, md.SamplingIntervalSeconds)
}

// WriteEntries writes every ledger entry, one per line in text mode.
func WriteEntries(w io.Writer, entries []ledger.Entry, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, dimStyle.Render("Index is empty."))
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s %s %s%s\n",
			rankStyle.Render(fmt.Sprintf("%5d", e.Index)),
			kindStyle.Render(fmt.Sprintf("%-7s", e.Metadata.Kind)),
			utils.TruncatePath(e.Metadata.SourcePath, maxPathWidth),
			dimStyle.Render(videoSuffix(e.Metadata)),
		)
	}
	return nil
}

// WriteStats writes the index summary.
func WriteStats(w io.Writer, stats *models.StatsResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintln(w, headerStyle.Render("MediaLens index"))
	rows := [][2]string{
		{"Entries", fmt.Sprintf("%d", stats.Total)},
		{"Images", fmt.Sprintf("%d", stats.Images)},
		{"Videos", fmt.Sprintf("%d", stats.Videos)},
		{"Dimensions", fmt.Sprintf("%d", stats.Dimensions)},
		{"Frame interval", fmt.Sprintf("%gs", stats.FrameInterval)},
		{"Index directory", stats.IndexDir},
		{"Disk usage", FormatBytes(stats.DiskUsageBytes)},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render(row[0]+":"), row[1])
	}
	return nil
}

// WriteVideoInfo writes probe results for one video.
func WriteVideoInfo(w io.Writer, path string, info *media.VideoInfo, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, struct {
			Path string `json:"path"`
			*media.VideoInfo
		}{path, info})
	}
	fmt.Fprintln(w, headerStyle.Render(filepath.Base(path)))
	rows := [][2]string{
		{"Duration", fmt.Sprintf("%.2fs", info.DurationSeconds)},
		{"FPS", fmt.Sprintf("%.2f", info.FPS)},
		{"Frames", fmt.Sprintf("%d", info.TotalFrames)},
		{"Resolution", fmt.Sprintf("%dx%d", info.Width, info.Height)},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render(row[0]+":"), row[1])
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
