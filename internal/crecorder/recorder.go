//go:build linux && cgo

// Package crecorder provides a C callback that records its invocations.
//
// Test files cannot use cgo, so tests that need a real C function pointer to
// hand across the callback boundary get one from here. The recorder lives in
// C memory so it can be passed as the opaque state pointer and written from
// any thread without breaking the cgo pointer rules.
//
// CallFromCThread calls an entry point from a pthread created in C, the way
// a host process that loaded the shared library would.
package crecorder

/*
#cgo LDFLAGS: -pthread
#include <pthread.h>
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>
#include <unistd.h>
#include <sys/syscall.h>

#define RECORDER_CAP 1024

typedef struct {
	int32_t values[RECORDER_CAP];
	void *states[RECORDER_CAP];
	int64_t threads[RECORDER_CAP];
	int32_t claimed;
	int32_t completed;
} recorder_t;

static void recorder_callback(int32_t value, void *state) {
	recorder_t *r = (recorder_t *)state;
	int32_t slot = __atomic_fetch_add(&r->claimed, 1, __ATOMIC_SEQ_CST);
	if (slot < RECORDER_CAP) {
		r->values[slot] = value;
		r->states[slot] = state;
		r->threads[slot] = (int64_t)syscall(SYS_gettid);
	}
	__atomic_fetch_add(&r->completed, 1, __ATOMIC_RELEASE);
}

static int32_t recorder_completed(recorder_t *r) {
	return __atomic_load_n(&r->completed, __ATOMIC_ACQUIRE);
}

static void *recorder_callback_ptr(void) {
	return (void *)recorder_callback;
}

typedef int (*invoke_fn)(void (*)(int32_t, void *), void *, bool);

typedef struct {
	invoke_fn invoke;
	void *state;
	bool async;
	int status;
	int64_t thread;
} foreign_call_t;

static void *foreign_call_main(void *arg) {
	foreign_call_t *c = (foreign_call_t *)arg;
	c->thread = (int64_t)syscall(SYS_gettid);
	c->status = c->invoke(recorder_callback, c->state, c->async);
	return NULL;
}

static int foreign_call(void *invoke, void *state, bool async, int *status, int64_t *thread) {
	foreign_call_t c = {(invoke_fn)invoke, state, async, 0, 0};
	pthread_t t;
	int rc = pthread_create(&t, NULL, foreign_call_main, &c);
	if (rc != 0) {
		return rc;
	}
	rc = pthread_join(t, NULL);
	*status = c.status;
	*thread = c.thread;
	return rc;
}
*/
import "C"

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Capacity is the number of invocations a Recorder keeps details for. Calls
// beyond it are still counted.
const Capacity = C.RECORDER_CAP

// Call is one recorded invocation.
type Call struct {
	Value    int32
	State    unsafe.Pointer
	ThreadID int
}

// Recorder counts and records invocations of Callback.
type Recorder struct {
	r *C.recorder_t
}

// New allocates a zeroed recorder in C memory. Call Free when done.
func New() *Recorder {
	r := (*C.recorder_t)(C.calloc(1, C.sizeof_recorder_t))
	if r == nil {
		panic("crecorder: calloc failed")
	}
	return &Recorder{r: r}
}

// Free releases the C memory. Callbacks that are still pending must not fire
// afterwards.
func (r *Recorder) Free() {
	if r.r != nil {
		C.free(unsafe.Pointer(r.r))
		r.r = nil
	}
}

// Callback returns the C function pointer to pass across the boundary.
func Callback() unsafe.Pointer {
	return C.recorder_callback_ptr()
}

// State returns the opaque state pointer the callback expects.
func (r *Recorder) State() unsafe.Pointer {
	return unsafe.Pointer(r.r)
}

// Completed returns how many invocations have finished recording.
func (r *Recorder) Completed() int {
	return int(C.recorder_completed(r.r))
}

// WaitFor polls until at least n invocations have completed or timeout
// elapses.
func (r *Recorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if r.Completed() >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Calls returns the recorded invocations in the order slots were claimed.
// It is only consistent once Completed has stopped changing.
func (r *Recorder) Calls() []Call {
	n := r.Completed()
	if n > Capacity {
		n = Capacity
	}
	calls := make([]Call, n)
	for i := 0; i < n; i++ {
		calls[i] = Call{
			Value:    int32(r.r.values[i]),
			State:    r.r.states[i],
			ThreadID: int(r.r.threads[i]),
		}
	}
	return calls
}

// ForeignCall is the outcome of calling an entry point from a thread created
// in C.
type ForeignCall struct {
	// Status is what the entry point returned.
	Status int
	// ThreadID is the kernel id of the thread that made the call.
	ThreadID int
}

// CallFromCThread starts a pthread that calls
// invoke(Callback(), r.State(), async) and waits for the thread to exit.
// invoke must point to a C function of type
// int (*)(void (*)(int32_t, void *), void *, bool).
func (r *Recorder) CallFromCThread(invoke unsafe.Pointer, async bool) (ForeignCall, error) {
	var status C.int
	var thread C.int64_t
	if rc := C.foreign_call(invoke, unsafe.Pointer(r.r), C.bool(async), &status, &thread); rc != 0 {
		return ForeignCall{}, fmt.Errorf("foreign call: %w", unix.Errno(rc))
	}
	return ForeignCall{Status: int(status), ThreadID: int(thread)}, nil
}
