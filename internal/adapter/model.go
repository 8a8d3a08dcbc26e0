// Package adapter converts transcript files produced by different speech-to-text
// tools into the standardized transcript.Transcript model.
package adapter

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
)

// Common errors for adapter operations
var (
	ErrUnsupportedFormat = errors.New("unsupported transcript format")
)

// Format identifies a transcript file format.
type Format string

const (
	FormatWhisperJSON Format = "whisper-json"
	FormatSRT         Format = "srt"
)

// Adapter defines the interface for converting a tool-specific transcript file
// into a transcript.Transcript.
type Adapter interface {
	// Format returns the format identifier handled by the adapter
	Format() Format

	// Parse converts raw file contents. source names the originating media file.
	Parse(source string, data []byte) (*transcript.Transcript, error)
}

// ForPath selects an adapter from a file extension.
func ForPath(path string) (Adapter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewWhisperAdapter(), nil
	case ".srt":
		return NewSRTAdapter(), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}
