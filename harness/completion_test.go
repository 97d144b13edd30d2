package harness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompletionSourceSetOnce tests the first result wins and later sets are rejected
func TestCompletionSourceSetOnce(t *testing.T) {
	c := NewCompletionSource()

	_, ok := c.TryResult()
	assert.False(t, ok)

	require.NoError(t, c.SetResult(42))
	assert.ErrorIs(t, c.SetResult(24), ErrAlreadyCompleted)

	v, ok := c.TryResult()
	assert.True(t, ok)
	assert.Equal(t, int32(42), v)

	v, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)
}

// TestCompletionSourceWaitWakesOnSet tests that a waiter wakes when the result arrives
func TestCompletionSourceWaitWakesOnSet(t *testing.T) {
	c := NewCompletionSource()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = c.SetResult(7)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := c.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
}

// TestCompletionSourceWaitTimeout tests that a missing result ends in ErrTimeout
func TestCompletionSourceWaitTimeout(t *testing.T) {
	c := NewCompletionSource()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Wait(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestCompletionSourceWaitCancelled tests that cancellation is not reported as a timeout
func TestCompletionSourceWaitCancelled(t *testing.T) {
	c := NewCompletionSource()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

// TestCompletionSourceConcurrentSetters tests that exactly one of many racing setters succeeds
func TestCompletionSourceConcurrentSetters(t *testing.T) {
	c := NewCompletionSource()

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(v int32) {
			defer wg.Done()
			errs <- c.SetResult(v)
		}(int32(i))
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyCompleted)
		}
	}
	assert.Equal(t, 1, succeeded)
}

// TestResettableSourceVersions tests that each Reset starts a fresh version and rejects stale ones
func TestResettableSourceVersions(t *testing.T) {
	s := NewResettableSource()
	v1 := s.Version()
	assert.Equal(t, uint64(1), v1)

	require.NoError(t, s.SetResult(v1, 24))
	assert.ErrorIs(t, s.SetResult(v1, 24), ErrAlreadyCompleted)

	value, ok, err := s.TryResult(v1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(24), value)

	v2 := s.Reset()
	assert.Equal(t, v1+1, v2)

	_, ok, err = s.TryResult(v2)
	require.NoError(t, err)
	assert.False(t, ok, "reset must clear the previous result")

	_, _, err = s.TryResult(v1)
	assert.ErrorIs(t, err, ErrStaleVersion)
	assert.ErrorIs(t, s.SetResult(v1, 42), ErrStaleVersion, "late result from an earlier round")

	_, err = s.Wait(context.Background(), v1)
	assert.ErrorIs(t, err, ErrStaleVersion)
}

// TestResettableSourceWait tests waiting on the current version
func TestResettableSourceWait(t *testing.T) {
	s := NewResettableSource()
	version := s.Version()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = s.SetResult(version, 42)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	value, err := s.Wait(ctx, version)
	require.NoError(t, err)
	assert.Equal(t, int32(42), value)
}

// TestResettableSourceResetBeforeWait tests that waiting on a version already reset fails at once
func TestResettableSourceResetBeforeWait(t *testing.T) {
	s := NewResettableSource()
	version := s.Version()
	s.Reset()

	_, err := s.Wait(context.Background(), version)
	assert.ErrorIs(t, err, ErrStaleVersion)
}

// TestResettableSourceResetDuringWait tests that Reset wakes waiters on the previous version
func TestResettableSourceResetDuringWait(t *testing.T) {
	s := NewResettableSource()
	version := s.Version()

	errs := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := s.Wait(ctx, version)
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.Reset()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrStaleVersion)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken by Reset")
	}
}

// TestResettableSourceWaitTimeout tests that a missing result ends in ErrTimeout
func TestResettableSourceWaitTimeout(t *testing.T) {
	s := NewResettableSource()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Wait(ctx, s.Version())
	assert.ErrorIs(t, err, ErrTimeout)
}

// TestTicketBindsVersion tests that a ticket only delivers to its own version
func TestTicketBindsVersion(t *testing.T) {
	s := NewResettableSource()
	old := ticket{src: s, version: s.Version()}
	current := ticket{src: s, version: s.Reset()}

	assert.ErrorIs(t, old.deliver(42), ErrStaleVersion)
	_, ok := old.try()
	assert.False(t, ok)

	require.NoError(t, current.deliver(24))
	v, ok := current.try()
	assert.True(t, ok)
	assert.Equal(t, int32(24), v)
}

// TestResettableSourceTask tests waiting on the task prepared by Reset
func TestResettableSourceTask(t *testing.T) {
	s := NewResettableSource()
	task := s.Task()
	assert.Equal(t, s.Version(), task.Version())

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = task.deliver(42)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := task.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	v, ok := task.try()
	assert.True(t, ok)
	assert.Equal(t, int32(42), v)
}

// TestResettableSourceTaskGoesStale tests that a prepared task is woken and invalidated by the next Reset
func TestResettableSourceTaskGoesStale(t *testing.T) {
	s := NewResettableSource()
	old := s.Task()

	errs := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := old.Wait(ctx)
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.Reset()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrStaleVersion)
	case <-time.After(5 * time.Second):
		t.Fatal("prepared task was not woken by Reset")
	}

	current := s.Task()
	assert.Equal(t, old.Version()+1, current.Version())
	assert.ErrorIs(t, old.deliver(42), ErrStaleVersion)
	require.NoError(t, current.deliver(24))
}

// TestResettableSourceTaskTimeout tests that a prepared task honours the context deadline
func TestResettableSourceTaskTimeout(t *testing.T) {
	s := NewResettableSource()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Task().Wait(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
}
