// Package errs defines the error classes every backend-facing operation in
// this module reports through. Callers branch on the class, never on raw
// backend message strings.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrCanceled marks a fetch that was cancelled or timed out. It is
	// expected and must never be surfaced to the user.
	ErrCanceled = errors.New("request canceled")

	// ErrTransient marks a backend failure worth retrying once.
	ErrTransient = errors.New("transient backend failure")

	// ErrAuthorization marks a row-level-security rejection. Shown to the
	// user with a dedicated message, distinct from generic failures.
	ErrAuthorization = errors.New("not authorized for this data")

	// ErrValidation marks input rejected before any backend call was made.
	ErrValidation = errors.New("invalid input")

	// ErrPartialOrder marks an order submission that wrote the order row
	// but failed before all lines were recorded. The order is NOT confirmed.
	ErrPartialOrder = errors.New("order partially written")

	// ErrNotFound marks a single-row lookup that matched nothing.
	ErrNotFound = errors.New("record not found")
)

func Canceled(err error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, err)
}

func Transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func Authorization(err error) error {
	return fmt.Errorf("%w: %w", ErrAuthorization, err)
}

func Validation(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func IsTransient(err error) bool {
	if errors.Is(err, ErrTransient) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func IsAuthorization(err error) bool {
	return errors.Is(err, ErrAuthorization)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// UserMessage maps an error to the inline message a view should render.
// Cancellations return "" because they are never shown.
func UserMessage(err error) string {
	switch {
	case err == nil, IsCanceled(err):
		return ""
	case IsAuthorization(err):
		return "You don't have access to this data. Sign in with the right account and try again."
	case IsValidation(err):
		return "Please check the highlighted fields and try again."
	case errors.Is(err, ErrPartialOrder):
		return "Your order could not be completed and was not confirmed. You have not been charged."
	default:
		return "Something went wrong. Please try again."
	}
}
