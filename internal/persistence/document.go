package persistence

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/hyperjump/medialens/internal/ledger"
)

const documentVersion = 1

// document is the on-disk form of the ledger.
type document struct {
	Version    int            `json:"version"`
	Generation string         `json:"generation"`
	Dimensions int            `json:"dim"`
	Count      int            `json:"count"`
	Entries    []ledger.Entry `json:"entries"`
}

func encodeDocument(w io.Writer, doc *document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// decodeDocument parses a metadata document. A bare JSON array of metadata
// objects is accepted as the legacy layout and returned with an empty
// generation.
func decodeDocument(data []byte) (*document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty metadata document")
	}
	if trimmed[0] == '[' {
		var records []ledger.Metadata
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		doc := &document{Count: len(records), Entries: make([]ledger.Entry, len(records))}
		for i, rec := range records {
			doc.Entries[i] = ledger.Entry{Index: i, Metadata: rec}
		}
		return doc, nil
	}
	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("unsupported metadata version %d", doc.Version)
	}
	return &doc, nil
}
