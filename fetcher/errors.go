package fetcher

import (
	"errors"
	"fmt"
)

// TransientError marks a failure that is worth retrying: rate limiting,
// server-side errors, timeouts and other network hiccups.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient fetch error: %s", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix, such as a 4xx
// response or a body that doesn't parse.
type PermanentError struct {
	StatusCode int
	Err        error
}

func (e *PermanentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("permanent fetch error (http %d): %s", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("permanent fetch error: %s", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// ExhaustedError is returned once the retry budget for a single logical
// request is spent. It carries the last transient cause.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch exhausted after %d attempts, last error: %s", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

func Transient(err error) error { return &TransientError{Err: err} }

func Permanent(status int, err error) error { return &PermanentError{StatusCode: status, Err: err} }
