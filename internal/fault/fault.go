package fault

import (
	"context"
	"errors"
	"fmt"
)

// Exit status used when the root context was cancelled by a signal.
const InterruptedExitCode = 130

// An error carrying both a category sentinel and the underlying cause.
type wrapped struct {
	category error
	cause    error
}

func (w *wrapped) Error() string {
	return w.category.Error() + ": " + w.cause.Error()
}

// Unwrap exposes both the category and the cause to [errors.Is] and [errors.As].
func (w *wrapped) Unwrap() []error {
	return []error{w.category, w.cause}
}

// Attaches a cause to a category sentinel.
//
// Returns nil when cause is nil.
func Wrap(category, cause error) error {
	if cause == nil {
		return nil
	}
	return &wrapped{category: category, cause: cause}
}

// Formats a message and attaches it to a category sentinel.
//
// The format string may contain %w verbs; the wrapped errors stay reachable.
func Wrapf(category error, format string, args ...any) error {
	return &wrapped{category: category, cause: fmt.Errorf(format, args...)}
}

// Implemented by errors that dictate their own process exit status.
type ExitCoder interface {
	ExitCode() int
}

// Returns the process exit status for an error chain.
//
// Nil maps to 0. An [ExitCoder] anywhere in the chain wins, then context
// cancellation maps to [InterruptedExitCode]. Everything else is 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var coder ExitCoder
	if errors.As(err, &coder) {
		if code := coder.ExitCode(); code != 0 {
			return code
		}
		return 1
	}

	if errors.Is(err, context.Canceled) {
		return InterruptedExitCode
	}

	return 1
}
