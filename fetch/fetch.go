// Package fetch implements the one fetch lifecycle every list-loading view
// goes through: optional wait for session readiness, a fixed per-attempt
// timeout, a single retry after a fixed delay, and silent discard on
// cancellation. Views configure it instead of re-implementing it.
package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/junaidrashid-git/storefront-core/errs"
	"github.com/junaidrashid-git/storefront-core/logging"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultRetryDelay = time.Second
)

// Gate blocks role-scoped reads until the session probe has resolved.
type Gate interface {
	Ready() <-chan struct{}
}

type Options struct {
	// Gate, when set, is waited on before the first attempt. Public reads
	// leave it nil and race ahead of session readiness.
	Gate Gate

	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration

	// RetryDelay is the pause before the single retry. Zero means
	// DefaultRetryDelay.
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Run executes fn under the lifecycle rules. A cancellation or timeout
// comes back as errs.ErrCanceled and must be discarded by the caller; any
// other failure has already been retried once.
func Run[T any](ctx context.Context, opts Options, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	if opts.Gate != nil {
		select {
		case <-opts.Gate.Ready():
		case <-ctx.Done():
			return zero, errs.Canceled(ctx.Err())
		}
	}

	out, err := attempt(ctx, timeout, fn)
	if err == nil {
		return out, nil
	}
	if errs.IsCanceled(err) {
		return zero, errs.Canceled(err)
	}

	log.Debug("fetch failed, retrying once", "err", err)
	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return zero, errs.Canceled(ctx.Err())
	}

	out, err = attempt(ctx, timeout, fn)
	if err == nil {
		return out, nil
	}
	if errs.IsCanceled(err) {
		return zero, errs.Canceled(err)
	}
	return zero, err
}

func attempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}
