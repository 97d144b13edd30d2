// Package nativecallback implements a native callback test fixture.
//
// The fixture exists to check that a foreign-function harness can call into
// native code and receive callbacks, both on the calling thread and from a
// background thread. It is deliberately tiny: one pure function and one
// callback dispatcher.
//
// # Getting Started
//
// Compute is a pure transform:
//
//	nativecallback.Compute(5)  // 30
//	nativecallback.Compute(-3) // 6
//
// InvokeCallback delivers a fixed payload either synchronously or from a
// detached goroutine:
//
//	done := make(chan int32, 1)
//	cb := nativecallback.CallbackFunc(func(v int32, _ unsafe.Pointer) {
//	    done <- v
//	})
//
//	status, err := nativecallback.InvokeCallback(cb, nil, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if status == nativecallback.StatusPending {
//	    fmt.Println(<-done) // 42
//	}
//
// # Payloads
//
// The synchronous path always delivers [SyncPayload] (24) and the
// asynchronous path always delivers [AsyncPayload] (42). They are fixed so a
// test can tell which path executed.
//
// # Core Types
//
//   - [Surface]: the dispatcher, carrying only a logger
//   - [Callback] and [CallbackFunc]: the single-method callable capability
//   - [Status]: [StatusComplete] or [StatusPending]
//
// # C Library
//
// The capi directory builds the same surface as a C shared library:
//
//	go build -buildmode=c-shared -o libcallback_test_native_lib.so ./capi/
//
// exporting hello and invokeCallback with C linkage. See capi/library.h.
//
// # Thread Safety
//
// Nothing is shared between calls. The opaque state pointer is never read or
// written by this package; its safety across threads is the caller's
// responsibility. Asynchronous callbacks are never joined, so a caller that
// must observe completion has to signal from inside the callback.
//
// # Logging
//
// Dispatch is logged at debug level through logrus. Use [NewSurface] to send
// logs to a specific entry.
package nativecallback
