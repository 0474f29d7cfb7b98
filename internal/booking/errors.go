package booking

import (
	"errors"
	"fmt"
)

var (
	ErrLectureNotFound = errors.New("lecture not found or inactive")
	ErrAccountNotFound = errors.New("no account with that email")
	// ErrInvalidOrExpiredToken covers missing, expired, and already redeemed
	// tokens alike. Callers cannot tell which, on purpose.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
