// Package main builds the native callback test fixture as a C shared library.
//
// # Build Instructions
//
// To build as a C shared library:
//
//	go build -buildmode=c-shared -o libcallback_test_native_lib.so ./capi/
//
// This generates:
//   - libcallback_test_native_lib.so: The shared library
//   - libcallback_test_native_lib.h: Auto-generated C header file with function declarations
//
// library.h in this directory carries the IO_COMPLETE and IO_PENDING
// constants, the callback typedef and the prototypes, and can be included on
// its own. The entry points themselves are defined in internal/cabi; this
// package only links them into the library.
//
// # C API Usage
//
//	#include "library.h"
//
//	static void on_value(int32_t value, void *state) {
//	    *(int32_t *)state = value;
//	}
//
//	int32_t squared_plus = hello(5); // 30
//
//	int32_t got = 0;
//	if (invokeCallback(on_value, &got, false) == IO_COMPLETE) {
//	    // got == 24
//	}
//
//	if (invokeCallback(on_value, &got, true) == IO_PENDING) {
//	    // got becomes 42 at some later point, on another thread
//	}
//
// # Callback Bridging
//
// The callback pointer is invoked from Go through a C trampoline. On the
// synchronous path it runs on the thread that called invokeCallback. On the
// asynchronous path it runs from a goroutine, which is never the calling
// thread, and nothing waits for it. The state pointer is passed through and
// never dereferenced, so the caller decides how to synchronise with the
// callback.
//
// Every asynchronous call starts a new goroutine. Nothing bounds how many can
// be outstanding at once.
//
// # Error Handling
//
// There is no error channel in the C interface. A NULL callback is logged and
// reported as IO_COMPLETE without invoking anything.
//
// # Logging
//
// Set CALLBACK_TEST_LOG_LEVEL (debug, info, warn, error) before the library
// is loaded. The default is warn.
package main
