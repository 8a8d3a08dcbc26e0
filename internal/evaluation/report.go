package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const maxReportSuffix = 1000

var (
	ErrReportExists = errors.New("report file name exhausted")
)

// ReportFileName returns the base name for a report, embedding its sortable
// timestamp.
func ReportFileName(report *Report) string {
	return fmt.Sprintf("evaluation_results_%s", report.Timestamp.Format("20060102_150405"))
}

// SaveReport writes report to dir and returns the file path. Files are created
// exclusively and never overwritten; a name collision gets a _N suffix.
func SaveReport(dir string, report *Report) (string, error) {
	if report == nil {
		return "", errors.New("report cannot be nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results directory: %w", err)
	}

	data, err := encodeReport(report)
	if err != nil {
		return "", err
	}

	base := ReportFileName(report)
	for n := 0; n < maxReportSuffix; n++ {
		name := base + ".json"
		if n > 0 {
			name = fmt.Sprintf("%s_%d.json", base, n)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create report: %w", err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write report: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return "", fmt.Errorf("sync report: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close report: %w", err)
		}
		return path, nil
	}

	return "", fmt.Errorf("%w: %s", ErrReportExists, base)
}

// LoadReport reads a persisted report.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return &r, nil
}

func encodeReport(report *Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(data, '\n'), nil
}
