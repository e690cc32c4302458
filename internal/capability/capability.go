// Package capability is the boundary to the external text-generation
// backend. The pipeline consumes it through a narrow interface: check
// availability, create one session per run, run text through it, and
// release the session exactly once on every exit path.
package capability

import (
	"context"
	"errors"
	"fmt"
)

// Availability describes whether the generation backend can serve.
type Availability string

const (
	Available        Availability = "available"
	Unavailable      Availability = "unavailable"
	AwaitingDownload Availability = "awaiting-download"
)

// ErrUnavailable is returned when no usable generation backend exists.
var ErrUnavailable = errors.New("generation capability unavailable")

// ProgressEvent reports backend preparation progress (e.g. a lazy
// model download on first use).
type ProgressEvent struct {
	Phase   string `json:"phase"`
	Percent int    `json:"percent"`
}

// SessionOptions configures a new session.
type SessionOptions struct {
	// TaskPrompt primes the session for one kind of work (summarizing
	// or labeling) for its whole lifetime.
	TaskPrompt string

	// OnProgress, if set, receives preparation progress events. Calls
	// are synchronous and ordered.
	OnProgress func(ProgressEvent)
}

// Session is a stateful handle to the generation backend. Sessions are
// owned by exactly one pipeline run and are not safe for concurrent
// use.
type Session interface {
	// Run sends input through the backend and returns the generated
	// text.
	Run(ctx context.Context, input string) (string, error)

	// Release frees the session. It must be called exactly once;
	// additional calls are no-ops.
	Release()
}

// Client creates sessions against one backend.
type Client interface {
	Availability(ctx context.Context) Availability
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// RetryableError indicates a transient backend failure.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks whether an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
