package style

import (
	"fmt"
	"strings"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
)

/*
Lectures: 3 (41 segments, 1:02:10 of speech)
- lec1: 14 segments, 0:00 → 22:05
- lec2: 17 segments, 0:00 → 25:40
- lec3: 10 segments, 0:00 → 14:25
*/

// SummarizeCorpus describes the transcripts being analyzed: how many lectures,
// how many segments, and the time span each covers.
func SummarizeCorpus(transcripts []transcript.Transcript) string {
	if len(transcripts) == 0 {
		return "Lectures: 0"
	}

	var lines []string
	segments := 0
	var total float64
	for _, t := range transcripts {
		segments += len(t.Segments)
		total += t.Duration()
	}

	lines = append(lines, fmt.Sprintf("Lectures: %d (%d segments, %s of speech)", len(transcripts), segments, formatSpan(total)))

	for _, t := range transcripts {
		name := t.File
		if name == "" {
			name = transcript.UnknownSource
		}
		if len(t.Segments) == 0 {
			lines = append(lines, fmt.Sprintf("- %s: no segments", name))
			continue
		}
		first, last := t.Segments[0], t.Segments[len(t.Segments)-1]
		lines = append(lines, fmt.Sprintf("- %s: %d segments, %s → %s",
			name, len(t.Segments), formatSpan(first.Start), formatSpan(last.End)))
	}

	return strings.Join(lines, "\n")
}

// formatSpan renders seconds as m:ss, or h:mm:ss past the hour.
func formatSpan(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
