package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrAlreadyCompleted is returned when a result is set twice.
	ErrAlreadyCompleted = errors.New("completion already has a result")
	// ErrStaleVersion is returned when a reusable source was reset after the
	// caller took its version.
	ErrStaleVersion = errors.New("completion source was reset")
	// ErrTimeout is returned when no result arrives before the deadline.
	ErrTimeout = errors.New("timed out waiting for callback")
)

// completion is what a callback resolves through its state handle.
type completion interface {
	deliver(value int32) error
	try() (int32, bool)
	wait(ctx context.Context) (int32, error)
}

// waitErr maps a finished context to the harness error for it.
func waitErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	return ctx.Err()
}

// CompletionSource is a one-shot result slot filled by a callback.
type CompletionSource struct {
	done  chan struct{}
	set   atomic.Bool
	value int32
}

// NewCompletionSource creates an empty CompletionSource.
func NewCompletionSource() *CompletionSource {
	return &CompletionSource{done: make(chan struct{})}
}

// SetResult stores value and wakes waiters. Only the first call succeeds.
func (c *CompletionSource) SetResult(value int32) error {
	if !c.set.CompareAndSwap(false, true) {
		return ErrAlreadyCompleted
	}
	c.value = value
	close(c.done)
	return nil
}

// TryResult returns the value if it has been set.
func (c *CompletionSource) TryResult() (int32, bool) {
	select {
	case <-c.done:
		return c.value, true
	default:
		return 0, false
	}
}

// Wait blocks until the value is set or ctx is done.
func (c *CompletionSource) Wait(ctx context.Context) (int32, error) {
	select {
	case <-c.done:
		return c.value, nil
	case <-ctx.Done():
		return 0, waitErr(ctx)
	}
}

func (c *CompletionSource) deliver(value int32) error {
	return c.SetResult(value)
}

func (c *CompletionSource) try() (int32, bool) {
	return c.TryResult()
}

func (c *CompletionSource) wait(ctx context.Context) (int32, error) {
	return c.Wait(ctx)
}

// ResettableSource is a reusable result slot. Each Reset starts a new
// version; results and waits carry the version they belong to so a late
// callback from an earlier round cannot fill the current one.
type ResettableSource struct {
	mu      sync.Mutex
	version uint64
	done    chan struct{}
	value   int32
	set     bool
	task    Task
}

// NewResettableSource creates a source already reset to version 1.
func NewResettableSource() *ResettableSource {
	s := &ResettableSource{}
	s.Reset()
	return s
}

// Reset discards any result and returns the new version. Waiters on the
// previous version wake with ErrStaleVersion.
func (s *ResettableSource) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil && !s.set {
		close(s.done)
	}
	s.version++
	s.done = make(chan struct{})
	s.set = false
	s.value = 0
	s.task = Task{src: s, version: s.version, done: s.done}
	return s.version
}

// Task returns the Task prepared by the last Reset.
func (s *ResettableSource) Task() Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// Version returns the current version.
func (s *ResettableSource) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// SetResult stores value for version.
func (s *ResettableSource) SetResult(version uint64, value int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version != s.version {
		return ErrStaleVersion
	}
	if s.set {
		return ErrAlreadyCompleted
	}
	s.value = value
	s.set = true
	close(s.done)
	return nil
}

// TryResult returns the value for version if it has been set.
func (s *ResettableSource) TryResult(version uint64) (int32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version != s.version {
		return 0, false, ErrStaleVersion
	}
	return s.value, s.set, nil
}

// Wait blocks until the value for version is set or ctx is done.
func (s *ResettableSource) Wait(ctx context.Context, version uint64) (int32, error) {
	s.mu.Lock()
	if version != s.version {
		s.mu.Unlock()
		return 0, ErrStaleVersion
	}
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return 0, waitErr(ctx)
	}

	value, _, err := s.TryResult(version)
	return value, err
}

// ticket binds a ResettableSource to one version.
type ticket struct {
	src     *ResettableSource
	version uint64
}

func (t ticket) deliver(value int32) error {
	return t.src.SetResult(t.version, value)
}

func (t ticket) try() (int32, bool) {
	value, ok, err := t.src.TryResult(t.version)
	return value, ok && err == nil
}

func (t ticket) wait(ctx context.Context) (int32, error) {
	return t.src.Wait(ctx, t.version)
}

// Task is one version of a ResettableSource, prepared when the source is
// reset. Waiting on it selects on the channel captured then, without looking
// up the current round.
type Task struct {
	src     *ResettableSource
	version uint64
	done    <-chan struct{}
}

// Version returns the version the task belongs to.
func (t Task) Version() uint64 {
	return t.version
}

// Wait blocks until the task's value is set or ctx is done. A Reset before
// the value arrives wakes it with ErrStaleVersion.
func (t Task) Wait(ctx context.Context) (int32, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return 0, waitErr(ctx)
	}

	value, _, err := t.src.TryResult(t.version)
	return value, err
}

func (t Task) deliver(value int32) error {
	return t.src.SetResult(t.version, value)
}

func (t Task) try() (int32, bool) {
	value, ok, err := t.src.TryResult(t.version)
	return value, ok && err == nil
}

func (t Task) wait(ctx context.Context) (int32, error) {
	return t.Wait(ctx)
}
