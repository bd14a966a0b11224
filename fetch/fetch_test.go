package fetch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/junaidrashid-git/storefront-core/errs"
	"github.com/junaidrashid-git/storefront-core/fetch"
)

type gate chan struct{}

func (g gate) Ready() <-chan struct{} { return g }

func opts() fetch.Options {
	return fetch.Options{Timeout: time.Second, RetryDelay: time.Millisecond}
}

func TestRetryExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")

	_, err := fetch.Run(context.Background(), opts(), func(context.Context) (int, error) {
		calls.Add(1)
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 2, calls.Load(), "one original call plus exactly one retry")
}

func TestSecondAttemptCanSucceed(t *testing.T) {
	var calls atomic.Int32

	out, err := fetch.Run(context.Background(), opts(), func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.EqualValues(t, 2, calls.Load())
}

func TestCancellationIsSilentAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	_, err := fetch.Run(ctx, opts(), func(fctx context.Context) (int, error) {
		calls.Add(1)
		cancel()
		<-fctx.Done()
		return 0, fctx.Err()
	})
	require.True(t, errs.IsCanceled(err))
	require.EqualValues(t, 1, calls.Load(), "a cancelled attempt must not be retried")
}

func TestTimeoutTreatedAsCancellation(t *testing.T) {
	var calls atomic.Int32
	o := opts()
	o.Timeout = 10 * time.Millisecond

	_, err := fetch.Run(context.Background(), o, func(fctx context.Context) (int, error) {
		calls.Add(1)
		<-fctx.Done()
		return 0, fctx.Err()
	})
	require.True(t, errs.IsCanceled(err))
	require.EqualValues(t, 1, calls.Load())
}

func TestGatedFetchWaitsForReady(t *testing.T) {
	g := make(gate)
	started := make(chan struct{})
	o := opts()
	o.Gate = g

	done := make(chan struct{})
	go func() {
		defer close(done)
		fetch.Run(context.Background(), o, func(context.Context) (int, error) {
			close(started)
			return 1, nil
		})
	}()

	select {
	case <-started:
		t.Fatal("gated fetch started before readiness")
	case <-time.After(20 * time.Millisecond):
	}

	close(g)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fetch did not run after gate opened")
	}
}

func TestPublicFetchDoesNotWait(t *testing.T) {
	// No gate configured: runs immediately even though no session resolved.
	out, err := fetch.Run(context.Background(), opts(), func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, out)
}

func TestListCancellationLeavesStateUntouched(t *testing.T) {
	l := fetch.NewList[int]()
	require.Equal(t, fetch.Loading, l.State())

	ctx, cancel := context.WithCancel(context.Background())

	// Data arriving late: the attempt is cancelled mid-flight.
	l.Load(ctx, opts(), func(fctx context.Context) ([]int, error) {
		cancel()
		<-fctx.Done()
		return []int{1, 2, 3}, fctx.Err()
	})
	require.Equal(t, fetch.Loading, l.State(), "cancelled load must not alter state")

	// Backend erroring late: same silence.
	ctx2, cancel2 := context.WithCancel(context.Background())
	l.Load(ctx2, opts(), func(fctx context.Context) ([]int, error) {
		cancel2()
		<-fctx.Done()
		return nil, errors.New("late failure")
	})
	state, _, err := l.Snapshot()
	require.Equal(t, fetch.Loading, state)
	require.NoError(t, err)
}

func TestListLoadedEmptyIsNotAnError(t *testing.T) {
	l := fetch.NewList[string]()
	l.Load(context.Background(), opts(), func(context.Context) ([]string, error) {
		return nil, nil
	})
	state, items, err := l.Snapshot()
	require.Equal(t, fetch.Loaded, state)
	require.Empty(t, items)
	require.NoError(t, err)
}

func TestListFailureAfterRetry(t *testing.T) {
	l := fetch.NewList[string]()
	var calls atomic.Int32
	l.Load(context.Background(), opts(), func(context.Context) ([]string, error) {
		calls.Add(1)
		return nil, errors.New("down")
	})
	state, _, err := l.Snapshot()
	require.Equal(t, fetch.Failed, state)
	require.Error(t, err)
	require.EqualValues(t, 2, calls.Load())
}
