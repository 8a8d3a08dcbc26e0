package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedPayload = errors.New("malformed judge payload")
	ErrMissingField     = errors.New("missing field")
	ErrOutOfRange       = errors.New("value out of range")
)

// ParseError reports a judge response that could not be turned into a value.
// The affected value is recorded as absent; the run continues.
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse judge response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var scoreFields = []string{"accuracy", "completeness", "teaching_style", "clarity", "engagement"}

// ParseScores parses a rubric response. All five scores are required and must
// be integers in [1,10].
func ParseScores(raw string) (*Scores, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	values := make(map[string]int, len(scoreFields))
	for _, name := range scoreFields {
		v, err := intField(fields, name, 1, 10)
		if err != nil {
			return nil, &ParseError{Payload: raw, Err: err}
		}
		values[name] = v
	}

	return &Scores{
		Accuracy:      values["accuracy"],
		Completeness:  values["completeness"],
		TeachingStyle: values["teaching_style"],
		Clarity:       values["clarity"],
		Engagement:    values["engagement"],
	}, nil
}

// ParseRAGCheck parses a RAG-use response. Both fields are required; confidence
// must be an integer in [0,10].
func ParseRAGCheck(raw string) (*RAGCheck, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	msg, ok := fields["uses_lecture_context"]
	if !ok {
		return nil, &ParseError{Payload: raw, Err: fmt.Errorf("%w: uses_lecture_context", ErrMissingField)}
	}
	var used bool
	if err := json.Unmarshal(msg, &used); err != nil {
		return nil, &ParseError{Payload: raw, Err: fmt.Errorf("%w: uses_lecture_context: %v", ErrMalformedPayload, err)}
	}

	confidence, err := intField(fields, "confidence", 0, 10)
	if err != nil {
		return nil, &ParseError{Payload: raw, Err: err}
	}

	return &RAGCheck{UsesLectureContext: used, Confidence: confidence}, nil
}

// decodeObject extracts the single JSON object in raw and decodes its fields.
func decodeObject(raw string) (map[string]json.RawMessage, error) {
	payload, err := extractPayload(raw)
	if err != nil {
		return nil, &ParseError{Payload: raw, Err: err}
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, &ParseError{Payload: raw, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	if dec.More() {
		return nil, &ParseError{Payload: raw, Err: fmt.Errorf("%w: trailing data after object", ErrMalformedPayload)}
	}
	if fields == nil {
		return nil, &ParseError{Payload: raw, Err: fmt.Errorf("%w: null payload", ErrMalformedPayload)}
	}
	return fields, nil
}

func intField(fields map[string]json.RawMessage, name string, lo, hi int) (int, error) {
	msg, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	var v int
	if err := json.Unmarshal(msg, &v); err != nil {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrMalformedPayload, name)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%w: %s=%d not in [%d,%d]", ErrOutOfRange, name, v, lo, hi)
	}
	return v, nil
}

// extractPayload returns the JSON text inside raw. A fenced block (```json or
// ```) is unwrapped; otherwise raw must contain exactly one top-level object,
// optionally surrounded by prose.
func extractPayload(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrMalformedPayload)
	}

	if start := strings.Index(text, "```"); start >= 0 {
		body := text[start+3:]
		if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
			body = body[4:]
		}
		end := strings.Index(body, "```")
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated code fence", ErrMalformedPayload)
		}
		return strings.TrimSpace(body[:end]), nil
	}

	spans := topLevelObjects(text)
	switch len(spans) {
	case 0:
		return "", fmt.Errorf("%w: no JSON object found", ErrMalformedPayload)
	case 1:
		return text[spans[0][0]:spans[0][1]], nil
	default:
		return "", fmt.Errorf("%w: %d top-level objects", ErrMalformedPayload, len(spans))
	}
}

// topLevelObjects returns the [start,end) byte spans of balanced top-level
// {...} objects in text, honoring JSON string escapes.
func topLevelObjects(text string) [][2]int {
	var spans [][2]int
	depth, start := 0, -1
	inString, escaped := false, false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, [2]int{start, i + 1})
			}
		}
	}
	return spans
}

// isParseError reports whether err is a ParseError.
func isParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

