package keybarrier

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrLockInterrupted indicates a caller stopped waiting for a key's lock,
	// because its context was cancelled or the lock timeout expired.
	ErrLockInterrupted = errors.New("lock acquisition interrupted")

	// ErrWorkFailed indicates the guarded work returned an error or panicked.
	ErrWorkFailed = errors.New("work failed")

	// ErrNilWork indicates Run was called without a work function.
	ErrNilWork = errors.New("work function cannot be nil")

	// ErrNilContext indicates Run was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")
)

// LockInterruptedError is returned when a caller gives up waiting for a lock.
// The work was not run and the key was not marked done.
type LockInterruptedError struct {
	// Key is the key the caller was waiting on.
	Key any
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *LockInterruptedError) Error() string {
	return fmt.Sprintf("acquire lock for key %v: %v", e.Key, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *LockInterruptedError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrLockInterrupted.
func (e *LockInterruptedError) Is(target error) bool {
	return target == ErrLockInterrupted
}

// WorkError wraps a failure of the guarded work.
// The key was not marked done, so a later call will run the work again.
type WorkError struct {
	// Key is the key whose work failed.
	Key any
	// Err is the error returned by the work, or a *PanicError.
	Err error
}

// Error implements the error interface.
func (e *WorkError) Error() string {
	return fmt.Sprintf("work for key %v: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *WorkError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrWorkFailed.
func (e *WorkError) Is(target error) bool {
	return target == ErrWorkFailed
}

// PanicError captures a panic raised by the guarded work.
// It includes the stack trace for debugging.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("work panicked: %v", e.Value)
}
