package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/medialens/internal/ledger"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// ExportFormat selects the file format for Export.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportXLSX ExportFormat = "xlsx"
)

const sheetName = "Entries"

var exportColumns = []string{"Index", "Type", "Filename", "Path", "Frames", "Interval (s)", "Size (bytes)", "Registered", "ID"}

// ParseExportFormat maps a flag value to an ExportFormat.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(s)); f {
	case ExportJSON, ExportXLSX:
		return f, nil
	}
	return "", lenserr.New(lenserr.CodeExportFormatUnsupported, lenserr.ErrInvalidInput,
		"unknown export format (supported: json, xlsx)", lenserr.Field("format", s))
}

// Export writes entries to w as a JSON array or a single-sheet workbook.
func Export(w io.Writer, entries []ledger.Entry, format ExportFormat) error {
	switch format {
	case ExportJSON:
		if entries == nil {
			entries = []ledger.Entry{}
		}
		return writeJSON(w, entries)
	case ExportXLSX:
		return exportXLSX(w, entries)
	}
	return lenserr.New(lenserr.CodeExportFormatUnsupported, lenserr.ErrInvalidInput,
		"unknown export format", lenserr.Field("format", string(format)))
}

func exportXLSX(w io.Writer, entries []ledger.Entry) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	header := make([]any, len(exportColumns))
	for i, c := range exportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, e := range entries {
		md := e.Metadata
		var registered string
		if !md.RegisteredAt.IsZero() {
			registered = md.RegisteredAt.Format(time.RFC3339)
		}
		row := []any{e.Index, string(md.Kind), md.DisplayName, md.SourcePath,
			md.FrameCount, md.SamplingIntervalSeconds, md.SizeBytes, registered, md.ID}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", e.Index, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
