package fetch

import (
	"context"
	"sync"

	"github.com/junaidrashid-git/storefront-core/errs"
)

type State int

const (
	// Loading is the initial state. It is distinct from Loaded with zero
	// items: an empty list is a valid terminal state, not an error.
	Loading State = iota
	Loaded
	Failed
)

// List holds the state of one list-displaying view. A cancelled load leaves
// it untouched, so results arriving after teardown never flash an error.
type List[T any] struct {
	mu    sync.Mutex
	state State
	items []T
	err   error
	gen   int
}

func NewList[T any]() *List[T] {
	return &List[T]{state: Loading}
}

// Snapshot returns the current state, items and error.
func (l *List[T]) Snapshot() (State, []T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := make([]T, len(l.items))
	copy(items, l.items)
	return l.state, items, l.err
}

func (l *List[T]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Load runs fn through Run and applies the outcome. Overlapping loads are
// generation-checked: only the newest one may write. Cancellation applies
// nothing at all.
func (l *List[T]) Load(ctx context.Context, opts Options, fn func(context.Context) ([]T, error)) {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	items, err := Run(ctx, opts, fn)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	if err != nil {
		if errs.IsCanceled(err) {
			return
		}
		l.state = Failed
		l.err = err
		return
	}
	l.state = Loaded
	l.items = items
	l.err = nil
}
