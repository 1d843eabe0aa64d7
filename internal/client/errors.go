package client

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrAborted is returned when the user cancels an in-flight stream.
var ErrAborted = errors.New("stream aborted by user")

// ErrStreamInFlight is returned when a submission is attempted while a
// previous stream is still being consumed.
var ErrStreamInFlight = errors.New("a stream is already in flight")

// RateLimitError is the client-side view of a 429 rejection.
type RateLimitError struct {
	Limit     int
	Remaining int
	Message   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: daily limit of %d messages reached", e.Limit)
}

// IsRateLimited reports whether err is a quota rejection.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// IsAborted reports whether err stems from a user cancellation.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
