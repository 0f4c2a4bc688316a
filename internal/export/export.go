// Package export renders datasets as JSON, JSONL or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
)

// Format is a dataset file format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// ParseFormat validates a format name. An empty name means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatJSONL:
		return FormatJSONL, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the media type for a download in format f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSONL:
		return "application/x-ndjson"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json"
	}
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	if f == "" {
		return string(FormatJSON)
	}
	return string(f)
}

// Write renders examples to w in format f.
func Write(w io.Writer, f Format, examples []domain.GeneratedExample) error {
	switch f {
	case FormatJSON, "":
		return WriteJSON(w, examples)
	case FormatJSONL:
		return WriteJSONL(w, examples)
	case FormatCSV:
		return WriteCSV(w, examples)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteJSON writes an indented JSON array.
func WriteJSON(w io.Writer, examples []domain.GeneratedExample) error {
	if examples == nil {
		examples = []domain.GeneratedExample{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(examples); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// WriteJSONL writes one compact JSON object per line.
func WriteJSONL(w io.Writer, examples []domain.GeneratedExample) error {
	enc := json.NewEncoder(w)
	for i, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			return fmt.Errorf("write jsonl row %d: %w", i, err)
		}
	}
	return nil
}

// Columns is the CSV header, in column order.
var Columns = []string{
	"id",
	"category",
	"subcategory",
	"attackTechnique",
	"attackPrompt",
	"targetResponse",
	"defendedResponse",
	"attackSuccess",
	"severity",
	"notes",
}

// WriteCSV writes a header row followed by one row per example.
func WriteCSV(w io.Writer, examples []domain.GeneratedExample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, ex := range examples {
		row := []string{
			ex.ID,
			string(ex.Category),
			ex.Subcategory,
			ex.AttackTechnique,
			ex.AttackPrompt,
			ex.TargetResponse,
			ex.DefendedResponse,
			strconv.FormatBool(ex.AttackSuccess),
			string(ex.Severity),
			ex.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
