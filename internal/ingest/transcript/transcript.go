package transcript

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// UnknownSource is used for documents that carry no file name.
const UnknownSource = "unknown"

// DecodeDocument parses a single per-source transcript document. When the
// document has no "file" key, fallback is used as its source name.
func DecodeDocument(name string, data []byte, fallback string) (*Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, documentError(name, fmt.Errorf("%w: %v", ErrMalformedDocument, err))
	}
	if t.File == "" {
		t.File = fallback
	}
	if err := Validate(name, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DecodeCombined parses the combined document: an array of per-source transcripts.
// Entries without a "file" key are attributed to UnknownSource.
func DecodeCombined(name string, data []byte) ([]Transcript, error) {
	var docs []Transcript
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, documentError(name, fmt.Errorf("%w: %v", ErrMalformedDocument, err))
	}
	for i := range docs {
		if docs[i].File == "" {
			docs[i].File = UnknownSource
		}
		doc := fmt.Sprintf("%s[%d](%s)", name, i, docs[i].File)
		if err := Validate(doc, &docs[i]); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// Validate checks segment timing invariants and stamps every segment with the
// document's source file.
func Validate(doc string, t *Transcript) error {
	prevStart := math.Inf(-1)
	for i := range t.Segments {
		s := &t.Segments[i]
		switch {
		case math.IsNaN(s.Start) || math.IsNaN(s.End):
			return &InputError{Document: doc, Segment: i, Err: fmt.Errorf("%w: NaN timestamp", ErrInvalidSegment)}
		case s.Start < 0:
			return &InputError{Document: doc, Segment: i, Err: fmt.Errorf("%w: negative start %.3f", ErrInvalidSegment, s.Start)}
		case s.End < s.Start:
			return &InputError{Document: doc, Segment: i, Err: fmt.Errorf("%w: end %.3f before start %.3f", ErrInvalidSegment, s.End, s.Start)}
		case s.Start < prevStart:
			return &InputError{Document: doc, Segment: i, Err: fmt.Errorf("%w: start %.3f out of order", ErrInvalidSegment, s.Start)}
		}
		prevStart = s.Start
		s.SourceFile = t.File
	}
	return nil
}

// LoadCombined reads the combined transcript document.
func LoadCombined(path string) ([]Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, documentError(path, err)
	}
	return DecodeCombined(path, data)
}

// LoadStyleProfile reads the style profile document.
func LoadStyleProfile(path string) (*StyleProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, documentError(path, err)
	}
	var p StyleProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, documentError(path, fmt.Errorf("%w: %v", ErrMalformedDocument, err))
	}
	if strings.TrimSpace(p.Analysis) == "" {
		return nil, documentError(path, ErrMissingStyle)
	}
	return &p, nil
}

// SaveStyleProfile writes the style profile document.
func SaveStyleProfile(path string, p *StyleProfile) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create style directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode style profile: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
