package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation     = errors.New("invalid report")
	ErrRateLimited    = errors.New("report cooldown active")
	ErrAlreadyClaimed = errors.New("report already claimed")
	ErrNotClaimant    = errors.New("only the claiming staff member can close this report")
	ErrAlreadyClosed  = errors.New("report already closed")
)

// RateLimitedError is returned by Submit while the reporter's cooldown runs.
// It matches ErrRateLimited with errors.Is.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// IsUserError reports whether err is something the requester can fix or
// should simply be told about, as opposed to an internal failure.
func IsUserError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrNotClaimant) ||
		errors.Is(err, ErrAlreadyClosed)
}
