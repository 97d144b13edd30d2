package cabi

/*
#cgo CFLAGS: -I${SRCDIR}/../../capi
#define CALLBACK_TEST_CGO_BUILD
#include "library.h"
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/sirupsen/logrus"

	nativecallback "github.com/opd-ai/nativecallback"
	"github.com/opd-ai/nativecallback/internal/cbridge"
)

var surface = nativecallback.NewSurface(logrus.WithField("component", "capi"))

// hello returns in*in + in with 32-bit wraparound.
//
//export hello
func hello(in C.int32_t) C.int32_t {
	return C.int32_t(surface.Compute(int32(in)))
}

// invokeCallback calls callback(24, state) before returning IO_COMPLETE when
// async is false. When async is true it returns IO_PENDING at once and
// callback(42, state) runs later on another thread.
//
// A NULL callback is reported as IO_COMPLETE without calling anything.
//
//export invokeCallback
func invokeCallback(callback C.callback_fn, state unsafe.Pointer, async C.bool) C.int {
	status, err := surface.InvokeCallback(cbridge.NewFunc(unsafe.Pointer(callback)), state, bool(async))
	if err != nil {
		// The surface has already logged the refusal.
		return C.IO_COMPLETE
	}

	if status == nativecallback.StatusPending {
		return C.IO_PENDING
	}
	return C.IO_COMPLETE
}

// nativecallback_dispatch is the Go end of the callback Invoker hands to
// invokeCallback. handle is the state pointer C received, read back as the
// cgo.Handle value it was created from.
//
//export nativecallback_dispatch
func nativecallback_dispatch(value C.int32_t, handle C.uintptr_t) {
	h := cgo.Handle(handle)
	c := h.Value().(call)
	h.Delete()

	c.cb.Invoke(int32(value), c.state)
}
