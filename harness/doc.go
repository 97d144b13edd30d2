// Package harness drives the native callback surface the way a foreign
// caller does, turning each callback into a value that can be awaited.
//
// For every invocation the driver allocates a completion, wraps it in a
// runtime/cgo.Handle and passes a pointer to the handle as the opaque state.
// The callback resolves the handle, deletes it and sets the result. When the
// surface reports IO_COMPLETE the value is read immediately; when it reports
// IO_PENDING the driver waits, bounded by a timeout. IO_COMPLETE with no
// value delivered means no callback is coming, so the driver deletes the
// handle itself.
//
// The waiting styles:
//
//   - StyleOneShot: a fresh CompletionSource per call, read directly on
//     IO_COMPLETE
//   - StyleReusable: one ResettableSource per driver, versioned per call,
//     read directly on IO_COMPLETE
//   - StyleReusableAwait: the same source, always awaited through a ticket
//     built after the call returns
//   - StylePrepared: the same source, always awaited through the Task the
//     source prepared at Reset
//   - StyleAlwaysAwait: a fresh CompletionSource, always awaited
//
// Two invokers are provided. *nativecallback.Surface dispatches in Go.
// cabi.Invoker goes through the exported C entry point with a C callback
// and a handle value as void* state, which is what a host process does.
//
// Basic use:
//
//	d, err := harness.NewDriver(nativecallback.NewSurface(nil), harness.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	res, err := d.Invoke(ctx, true)
//	// res.Value == 42, res.Status == nativecallback.StatusPending
//
// The driver also checks the fixture's contract: the status must match the
// requested mode and the payload must match the status.
package harness
