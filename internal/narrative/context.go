package narrative

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Yates-Labs/lectern/internal/rag"
)

// FormatContext renders chunks as attributed passages separated by blank lines,
// keeping the total within limit runes (0 = unbounded). Chunks that do not fit
// are dropped from the tail; a lone first chunk that exceeds the limit is cut
// so the section is never empty when chunks were retrieved. It returns the
// rendered text and the number of chunks included.
func FormatContext(chunks []rag.ContextChunk, limit int) (string, int) {
	var b strings.Builder
	used := 0
	included := 0

	for i, ch := range chunks {
		entry := formatChunk(ch)
		sep := ""
		if i > 0 {
			sep = "\n\n"
		}
		size := utf8.RuneCountInString(sep + entry)

		if limit > 0 && used+size > limit {
			if included == 0 {
				b.WriteString(TruncateRunes(entry, limit))
				included = 1
			}
			break
		}

		b.WriteString(sep)
		b.WriteString(entry)
		used += size
		included++
	}

	return b.String(), included
}

// formatChunk renders "[source mm:ss–mm:ss]" followed by the chunk text.
func formatChunk(ch rag.ContextChunk) string {
	source := ch.SourceFile
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf("[%s %s–%s]\n%s", source, formatTimestamp(ch.StartTime), formatTimestamp(ch.EndTime), strings.TrimSpace(ch.Text))
}

// formatTimestamp renders seconds as m:ss, or h:mm:ss past the hour.
func formatTimestamp(seconds float64) string {
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
