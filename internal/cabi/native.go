package cabi

/*
#cgo CFLAGS: -I${SRCDIR}/../../capi
#include <stdint.h>
#include <stdbool.h>
#include "_cgo_export.h"

static void native_callback(int32_t value, void *state) {
	nativecallback_dispatch(value, (uintptr_t)state);
}

static int native_invoke(uintptr_t handle, bool async) {
	return invokeCallback(native_callback, (void *)handle, async);
}

static void *native_invoke_ptr(void) {
	return (void *)invokeCallback;
}
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	nativecallback "github.com/opd-ai/nativecallback"
)

// call is what one round trip through C resolves to on the way back.
type call struct {
	cb    nativecallback.Callback
	state unsafe.Pointer
}

// Invoker drives the exported invokeCallback through its C signature, the
// way a host process loading the shared library does.
//
// The function pointer handed to C is a static C function that forwards to
// Go. The state handed to C is a cgo.Handle value cast to void*, so C never
// holds a Go pointer and the asynchronous path may keep it for as long as it
// needs. The handle is deleted when the callback arrives.
type Invoker struct{}

// NewInvoker returns an Invoker. It holds no state.
func NewInvoker() Invoker {
	return Invoker{}
}

// InvokeCallback calls invokeCallback through C. cb runs with state on the
// thread C calls back on.
func (Invoker) InvokeCallback(cb nativecallback.Callback, state unsafe.Pointer, async bool) (nativecallback.Status, error) {
	if f, ok := cb.(nativecallback.CallbackFunc); cb == nil || (ok && f == nil) {
		return nativecallback.StatusComplete, nativecallback.ErrNilCallback
	}

	h := cgo.NewHandle(call{cb: cb, state: state})
	status := nativecallback.Status(C.native_invoke(C.uintptr_t(h), C.bool(async)))
	return status, nil
}

// invokeCallbackPointer returns the address of the exported invokeCallback,
// for C code that calls it through a function pointer.
func invokeCallbackPointer() unsafe.Pointer {
	return C.native_invoke_ptr()
}
