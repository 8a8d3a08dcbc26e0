package adapter

import (
	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
)

// WhisperAdapter implements the Adapter interface for Whisper JSON output
// ({"file", "text", "segments": [{"start", "end", "text"}]}).
type WhisperAdapter struct{}

// NewWhisperAdapter creates a new Whisper JSON adapter instance
func NewWhisperAdapter() *WhisperAdapter {
	return &WhisperAdapter{}
}

// Format returns the Whisper JSON format identifier
func (a *WhisperAdapter) Format() Format {
	return FormatWhisperJSON
}

// Parse decodes and validates a Whisper JSON document.
func (a *WhisperAdapter) Parse(source string, data []byte) (*transcript.Transcript, error) {
	return transcript.DecodeDocument(source, data, source)
}
