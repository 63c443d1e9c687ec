package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized means the caller is not an authenticated user. Retrying
	// without re-authenticating cannot succeed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstreamUnavailable means the identity provider, limiter store, or
	// post store was unreachable or errored. The operation may be retried by
	// the caller; the service itself never retries.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUserNotFound is returned by handle lookups for unknown handles.
	ErrUserNotFound = errors.New("user not found")
)

// ValidationReason identifies which content rule was violated.
type ValidationReason string

const (
	ReasonEmpty    ValidationReason = "empty"
	ReasonTooLong  ValidationReason = "too_long"
	ReasonNotEmoji ValidationReason = "not_emoji"
)

// ValidationError means the post content failed the emoji/length schema. The
// reason code distinguishes the violated rule even though clients typically
// collapse all of them into a single message.
type ValidationError struct {
	Reason ValidationReason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid post content: %s", e.Reason)
}

// RateLimitError means the caller exhausted their posting quota for the
// current window.
type RateLimitError struct {
	// Limit is the configured number of posts per window.
	Limit int

	// RetryAfter is how long until the window resets, if the limiter backend
	// reported it.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("you are only allowed %d posts per minute", e.Limit)
}

// IntegrityError means a persisted post references an author the identity
// provider could not resolve. Feed assembly fails closed on it rather than
// returning a partial page.
type IntegrityError struct {
	AuthorID string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("author %s does not exist", e.AuthorID)
}
