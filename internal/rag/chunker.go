package rag

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
)

// Default chunking parameters, counted in runes.
const (
	DefaultWindowSize = 1000
	DefaultOverlap    = 200
)

// ErrInvalidChunkOptions is returned when window size and overlap are inconsistent.
var ErrInvalidChunkOptions = errors.New("invalid chunk options")

// chunkNamespace seeds deterministic chunk IDs.
var chunkNamespace = uuid.MustParse("6f1c9a52-3b8e-4d6a-9a0e-2f4b7c1d8e35")

// ChunkOptions controls the sliding window.
type ChunkOptions struct {
	WindowSize int
	Overlap    int
}

// DefaultChunkOptions returns the default 1000/200 window.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{WindowSize: DefaultWindowSize, Overlap: DefaultOverlap}
}

// Validate checks that WindowSize > Overlap >= 0.
func (o ChunkOptions) Validate() error {
	if o.Overlap < 0 || o.WindowSize <= o.Overlap {
		return fmt.Errorf("%w: window %d, overlap %d (need window > overlap >= 0)",
			ErrInvalidChunkOptions, o.WindowSize, o.Overlap)
	}
	return nil
}

// ChunkTranscripts chunks every transcript document.
func ChunkTranscripts(transcripts []transcript.Transcript, opts ChunkOptions) ([]Chunk, error) {
	return ChunkSegments(transcript.AllSegments(transcripts), opts)
}

// ChunkSegments splits segments into overlapping windows. Segments are grouped by
// SourceFile in order of first appearance. Each segment's text is trimmed of
// surrounding whitespace, blank segments are dropped, and the rest are joined
// with single spaces into one document which is then windowed. That document is
// what DocumentText returns, not the raw segment text. Output is deterministic.
func ChunkSegments(segments []transcript.Segment, opts ChunkOptions) ([]Chunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var order []string
	bySource := make(map[string][]transcript.Segment)
	for _, s := range segments {
		if _, ok := bySource[s.SourceFile]; !ok {
			order = append(order, s.SourceFile)
		}
		bySource[s.SourceFile] = append(bySource[s.SourceFile], s)
	}

	var chunks []Chunk
	for _, source := range order {
		chunks = append(chunks, chunkDocument(source, bySource[source], opts)...)
	}
	return chunks, nil
}

// document is the concatenated text of one source with its segment offset table.
type document struct {
	runes []rune
	segs  []transcript.Segment
	ends  []int // exclusive rune end of each segment's text
}

func buildDocument(segments []transcript.Segment) document {
	var b strings.Builder
	doc := document{}
	n := 0
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if n > 0 {
			b.WriteByte(' ')
			n++
		}
		b.WriteString(text)
		n += len([]rune(text))
		doc.segs = append(doc.segs, s)
		doc.ends = append(doc.ends, n)
	}
	doc.runes = []rune(b.String())
	return doc
}

// owner returns the segment covering rune position pos. The separator before a
// segment belongs to that segment.
func (d document) owner(pos int) transcript.Segment {
	i := sort.Search(len(d.ends), func(i int) bool { return d.ends[i] > pos })
	if i == len(d.ends) {
		i = len(d.ends) - 1
	}
	return d.segs[i]
}

func chunkDocument(source string, segments []transcript.Segment, opts ChunkOptions) []Chunk {
	doc := buildDocument(segments)
	n := len(doc.runes)
	if n == 0 {
		return nil
	}

	step := opts.WindowSize - opts.Overlap
	var chunks []Chunk
	for start := 0; ; start += step {
		end := start + opts.WindowSize
		if end > n {
			end = n
		}

		text := string(doc.runes[start:end])
		index := len(chunks)
		chunks = append(chunks, Chunk{
			ID:         chunkID(source, index, text),
			Text:       text,
			SourceFile: source,
			StartTime:  doc.owner(start).Start,
			EndTime:    doc.owner(end - 1).End,
			Index:      index,
			Offset:     start,
		})

		if end == n {
			break
		}
	}
	return chunks
}

func chunkID(source string, index int, text string) string {
	name := source + "#" + strconv.Itoa(index) + "#" + text
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// Reassemble rebuilds each source document from its chunks by removing the
// overlapping regions. The result is keyed by source file and equals
// DocumentText of that source's segments: trimmed, space-joined text.
func Reassemble(chunks []Chunk) map[string]string {
	bySource := make(map[string][]Chunk)
	for _, c := range chunks {
		bySource[c.SourceFile] = append(bySource[c.SourceFile], c)
	}

	out := make(map[string]string, len(bySource))
	for source, group := range bySource {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Index < group[j].Index })

		var doc []rune
		for _, c := range group {
			text := []rune(c.Text)
			if c.Offset >= len(doc) {
				doc = append(doc, text...)
				continue
			}
			if tail := c.Offset + len(text) - len(doc); tail > 0 {
				doc = append(doc, text[len(text)-tail:]...)
			}
		}
		out[source] = string(doc)
	}
	return out
}

// DocumentText returns the concatenated document text that ChunkSegments windows
// for the given segments of a single source.
func DocumentText(segments []transcript.Segment) string {
	return string(buildDocument(segments).runes)
}
