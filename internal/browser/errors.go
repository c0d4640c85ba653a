package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/adobservatory/adharvest/internal/models"
)

// Terminal snapshot outcomes reported by the extractor. Each maps to one
// fetch status; none of them is retried.
var (
	ErrNoContentFound         = errors.New("snapshot has no content")
	ErrMissingMedia           = errors.New("snapshot is missing media")
	ErrAgeRestricted          = errors.New("snapshot is age restricted")
	ErrIPViolation            = errors.New("snapshot removed for intellectual property violation")
	ErrInvalidID              = errors.New("invalid archive id")
	ErrWrongArchiveID         = errors.New("snapshot served for a different archive id")
	ErrPermanentlyUnavailable = errors.New("snapshot permanently unavailable")
)

// RateLimitError signals the archive is throttling this worker. The current
// batch must be released and work paused for SuggestedWait (zero means the
// caller's default).
type RateLimitError struct {
	SuggestedWait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by ad archive (suggested wait %s)", e.SuggestedWait)
}

// DriverError wraps a recoverable browser failure (navigation timeout,
// crashed driver). The session should be recycled and the archive id
// retried once.
type DriverError struct {
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("browser driver error: %v", e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// IsDriverError reports whether err is a recoverable browser failure.
func IsDriverError(err error) bool {
	var de *DriverError
	return errors.As(err, &de)
}

// RequestError wraps a transient network failure while the extractor
// fetched snapshot media. The snapshot counts as a fetch failure and the
// pipeline moves on.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("snapshot media request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsRequestError reports whether err is a transient media request failure.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// FetchStatusForError maps a terminal extractor error to its snapshot fetch
// status. Returns false for errors that are not terminal outcomes.
func FetchStatusForError(err error) (models.FetchStatus, bool) {
	switch {
	case errors.Is(err, ErrNoContentFound), errors.Is(err, ErrMissingMedia):
		return models.FetchStatusNoContentFound, true
	case errors.Is(err, ErrAgeRestricted):
		return models.FetchStatusAgeRestricted, true
	case errors.Is(err, ErrIPViolation):
		return models.FetchStatusIPViolation, true
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrWrongArchiveID):
		return models.FetchStatusInvalidID, true
	case errors.Is(err, ErrPermanentlyUnavailable):
		return models.FetchStatusPermanentlyUnavailable, true
	}
	return models.FetchStatusUnknown, false
}
