// Package cabi holds the C-linkage entry points of the native callback
// fixture and an Invoker that calls them through C.
//
// hello and invokeCallback are exported with //export and end up in the
// shared library built from ./capi. Their prototypes and the IO_COMPLETE and
// IO_PENDING constants live in capi/library.h.
//
// Invoker lets Go code exercise the same boundary a host process does. It
// calls invokeCallback through its C signature with a static C callback and a
// cgo.Handle value as the state pointer:
//
//	status, err := cabi.NewInvoker().InvokeCallback(cb, state, true)
//
// The Go end of that callback is exported as nativecallback_dispatch. It is
// not part of library.h and C callers should not use it.
//
// Invoker satisfies harness.Invoker, so the callbackbench driver can measure
// the real C round trip rather than Go dispatch alone.
package cabi
