package adapter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
)

// SRTAdapter implements the Adapter interface for SubRip subtitle files.
// Each cue becomes one segment; multi-line cue text is joined with spaces.
type SRTAdapter struct{}

// NewSRTAdapter creates a new SRT adapter instance
func NewSRTAdapter() *SRTAdapter {
	return &SRTAdapter{}
}

// Format returns the SRT format identifier
func (a *SRTAdapter) Format() Format {
	return FormatSRT
}

// Parse converts SRT cues into transcript segments.
//
//	1
//	00:00:00,000 --> 00:00:01,830
//	I'm happy to
//	have you here today.
func (a *SRTAdapter) Parse(source string, data []byte) (*transcript.Transcript, error) {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	t := &transcript.Transcript{File: source}
	var texts []string

	for _, block := range strings.Split(strings.TrimSpace(content), "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 || lines[0] == "" {
			continue
		}

		// sequence number line is optional
		if isDigitOnly(strings.TrimSpace(lines[0])) && len(lines) > 1 {
			lines = lines[1:]
		}

		start, end, err := parseCueTiming(lines[0])
		if err != nil {
			return nil, &transcript.InputError{Document: source, Segment: len(t.Segments), Err: fmt.Errorf("%w: %v", transcript.ErrInvalidSegment, err)}
		}

		var text []string
		for _, line := range lines[1:] {
			if line = strings.TrimSpace(line); line != "" {
				text = append(text, line)
			}
		}
		if len(text) == 0 {
			continue
		}

		joined := strings.Join(text, " ")
		texts = append(texts, joined)
		t.Segments = append(t.Segments, transcript.Segment{Start: start, End: end, Text: joined})
	}

	t.Text = strings.Join(texts, " ")
	if err := transcript.Validate(source, t); err != nil {
		return nil, err
	}
	return t, nil
}

func parseCueTiming(line string) (float64, float64, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid cue timing %q", line)
	}
	start, err := parseSRTTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	// strip cue settings such as "align:start"
	endField := strings.Fields(parts[1])
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("invalid cue timing %q", line)
	}
	end, err := parseSRTTimestamp(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseSRTTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// some tools emit a period before the milliseconds
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}

func isDigitOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
