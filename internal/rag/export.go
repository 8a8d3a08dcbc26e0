package rag

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ExportFormat represents supported chunk export formats
type ExportFormat string

const (
	FormatJSON  ExportFormat = "json"
	FormatJSONL ExportFormat = "jsonl"
)

// ExportChunks writes chunks in the requested format for inspection.
func ExportChunks(chunks []Chunk, format string, writer io.Writer) error {
	switch ExportFormat(strings.ToLower(format)) {
	case FormatJSON:
		if chunks == nil {
			chunks = []Chunk{}
		}
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(chunks); err != nil {
			return fmt.Errorf("failed to encode chunks: %w", err)
		}
		return nil
	case FormatJSONL:
		encoder := json.NewEncoder(writer)
		for _, c := range chunks {
			if err := encoder.Encode(c); err != nil {
				return fmt.Errorf("failed to encode chunk %s: %w", c.ID, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format: %s (supported: json, jsonl)", format)
	}
}
