package transcript

// Segment is one timestamped span of transcribed speech.
// Segments are immutable once produced and ordered by Start within a source file.
type Segment struct {
	SourceFile string  `json:"-"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
}

// Transcript is the per-source document produced by the transcription step.
type Transcript struct {
	File     string    `json:"file"`
	Text     string    `json:"text,omitempty"`
	Segments []Segment `json:"segments"`
}

// StyleProfile describes the speaker's teaching style. It is created once by an
// offline extraction pass and is read-only at query time.
type StyleProfile struct {
	Analysis   string `json:"analysis"`
	SampleText string `json:"sample_transcripts"`
}

// Duration returns the time covered by the transcript's segments.
func (t *Transcript) Duration() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End - t.Segments[0].Start
}

// AllSegments flattens transcripts into one ordered slice, attributing each
// segment to its document.
func AllSegments(transcripts []Transcript) []Segment {
	n := 0
	for _, t := range transcripts {
		n += len(t.Segments)
	}
	out := make([]Segment, 0, n)
	for _, t := range transcripts {
		for _, s := range t.Segments {
			s.SourceFile = t.File
			out = append(out, s)
		}
	}
	return out
}
