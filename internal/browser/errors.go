package browser

import (
	"context"
	"errors"
	"fmt"
)

// timeoutError is comparable so ErrTimeout works with errors.Is, and it
// reports Timeout() so generic retry logic recognises it.
type timeoutError struct{}

func (timeoutError) Error() string { return "browser operation timed out" }
func (timeoutError) Timeout() bool { return true }

var (
	// ErrTimeout is returned when navigation or a wait exceeds the page timeout.
	ErrTimeout error = timeoutError{}

	// ErrLaunch is returned when Chrome cannot be started.
	ErrLaunch = errors.New("failed to launch browser")

	// ErrClosed is returned when a closed page is used.
	ErrClosed = errors.New("page is closed")
)

// wrapErr annotates err with the operation name. Deadline errors become
// ErrTimeout unless the caller's own context ended, in which case the
// caller's context error is returned.
func wrapErr(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}
