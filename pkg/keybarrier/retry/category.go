// Package retry re-runs barrier calls whose work failed.
//
// A Barrier never retries on its own: a failed call leaves its key unmarked
// and returns. This package supplies the caller-side loop, with exponential
// backoff and an error classifier that knows which barrier errors are worth
// another attempt:
//   - Work failures (keybarrier.ErrWorkFailed) are transient.
//   - Interrupted lock waits and context errors are permanent: the caller
//     asked to stop.
//   - Anything else is permanent unless wrapped with Transient.
package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/keybarrier/pkg/keybarrier"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates another attempt may succeed.
	CategoryTransient Category = iota

	// CategoryPermanent indicates another attempt will not help.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and the number of
// attempts made.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Attempts is the number of attempts that were made.
	Attempts int

	// Context describes why the loop stopped.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient marks err as worth retrying.
func Transient(err error) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent}
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	// Cancellation wins over a work failure that merely reported it.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryPermanent
	}
	if errors.Is(err, keybarrier.ErrLockInterrupted) {
		return CategoryPermanent
	}
	if errors.Is(err, keybarrier.ErrWorkFailed) {
		return CategoryTransient
	}

	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
