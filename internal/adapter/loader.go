package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
)

// LoadFile parses a transcript file with the adapter matching its extension.
// A document without its own source name is named after the file, minus the
// extension. Input errors name the file path.
func LoadFile(path string) (*transcript.Transcript, error) {
	a, err := ForPath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &transcript.InputError{Document: path, Segment: -1, Err: err}
	}

	base := filepath.Base(path)
	source := strings.TrimSuffix(base, filepath.Ext(base))
	t, err := a.Parse(source, data)
	if err != nil {
		var inputErr *transcript.InputError
		if errors.As(err, &inputErr) {
			inputErr.Document = path
		}
		return nil, err
	}
	return t, nil
}

// LoadDir parses every supported transcript file in dir, in file name order.
// Files whose base name appears in skip are ignored, as are unsupported formats.
func LoadDir(dir string, skip ...string) ([]transcript.Transcript, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &transcript.InputError{Document: dir, Segment: -1, Err: err}
	}

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[filepath.Base(s)] = true
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || skipped[e.Name()] {
			continue
		}
		if _, err := ForPath(e.Name()); err != nil {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]transcript.Transcript, 0, len(names))
	for _, name := range names {
		t, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}
