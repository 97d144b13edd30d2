// Package cbridge calls C function pointers of the form
// void (*)(int32_t, void*) from Go.
//
// Go cannot call a C function pointer directly, so the call goes through a
// small static trampoline defined in the preamble. The pointer crosses
// package boundaries as an unsafe.Pointer because cgo types are private to
// the package that declares them.
package cbridge

/*
#include <stdint.h>

typedef void (*callback_fn)(int32_t value, void *state);

static inline void call_callback(callback_fn cb, int32_t value, void *state) {
	cb(value, state);
}
*/
import "C"

import (
	"unsafe"
)

// Func is a C callback pointer. It satisfies nativecallback.Callback.
type Func struct {
	ptr unsafe.Pointer
}

// NewFunc wraps a C function pointer. ptr may be NULL; check IsNil before
// invoking.
func NewFunc(ptr unsafe.Pointer) Func {
	return Func{ptr: ptr}
}

// IsNil reports whether the wrapped pointer is NULL.
func (f Func) IsNil() bool {
	return f.ptr == nil
}

// Pointer returns the raw function pointer.
func (f Func) Pointer() unsafe.Pointer {
	return f.ptr
}

// Invoke calls the C function with value and state. state must not point to
// Go memory that holds Go pointers.
func (f Func) Invoke(value int32, state unsafe.Pointer) {
	C.call_callback(C.callback_fn(f.ptr), C.int32_t(value), state)
}
