package narrative

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
)

// ErrUpstream matches every UpstreamError via errors.Is.
var ErrUpstream = errors.New("upstream model failure")

// UpstreamKind classifies a failed model call.
type UpstreamKind string

const (
	KindUnavailable   UpstreamKind = "unavailable"
	KindRateLimited   UpstreamKind = "rate_limited"
	KindTimeout       UpstreamKind = "timeout"
	KindEmptyResponse UpstreamKind = "empty_response"
)

// UpstreamError reports a remote model call that failed. Callers decide on
// retries or fallbacks; the pipeline never retries on its own.
type UpstreamError struct {
	Kind UpstreamKind
	Err  error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("upstream %s", e.Kind)
	}
	return fmt.Sprintf("upstream %s: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrUpstream.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// UpstreamKindOf returns the kind of an UpstreamError in err's chain, or "".
func UpstreamKindOf(err error) UpstreamKind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}

// Classify wraps a failed model call as an UpstreamError. Deadlines map to
// KindTimeout, HTTP 429 to KindRateLimited and anything else to KindUnavailable.
// An err that already carries an UpstreamError is returned as that error.
func Classify(ctx context.Context, err error) *UpstreamError {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &UpstreamError{Kind: KindTimeout, Err: err}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return &UpstreamError{Kind: KindRateLimited, Err: err}
	}

	return &UpstreamError{Kind: KindUnavailable, Err: err}
}
