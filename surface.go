package nativecallback

import (
	"errors"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// Status reports whether a callback has already fired or will fire later.
type Status int32

const (
	// StatusComplete means the callback ran on the calling thread before return.
	StatusComplete Status = 0
	// StatusPending means the callback will run later on another thread.
	StatusPending Status = 1
)

// String returns the C constant name for the status.
func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "IO_COMPLETE"
	case StatusPending:
		return "IO_PENDING"
	default:
		return "IO_UNKNOWN"
	}
}

// Payload values delivered to the callback. They identify which path ran.
const (
	SyncPayload  int32 = 24
	AsyncPayload int32 = 42
)

// ErrNilCallback is returned when InvokeCallback is given no callback.
var ErrNilCallback = errors.New("callback is nil")

// Callback receives the payload and the caller's opaque state.
type Callback interface {
	Invoke(value int32, state unsafe.Pointer)
}

// CallbackFunc adapts a plain function to the Callback interface.
type CallbackFunc func(value int32, state unsafe.Pointer)

// Invoke calls f(value, state).
func (f CallbackFunc) Invoke(value int32, state unsafe.Pointer) {
	f(value, state)
}

// Surface is the native test surface. It holds no per-call state; the logger
// is the only field and may be shared freely across goroutines.
type Surface struct {
	log *logrus.Entry
}

// NewSurface creates a Surface that logs through entry. A nil entry uses the
// standard logrus logger.
func NewSurface(entry *logrus.Entry) *Surface {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Surface{log: entry}
}

var defaultSurface = NewSurface(nil)

// isNilCallback also catches typed nils hidden behind the interface, such as
// a nil CallbackFunc or a wrapper around a NULL C function pointer.
func isNilCallback(cb Callback) bool {
	switch c := cb.(type) {
	case nil:
		return true
	case CallbackFunc:
		return c == nil
	case interface{ IsNil() bool }:
		return c.IsNil()
	}
	return false
}

// Compute returns in*in + in with int32 wraparound.
func Compute(in int32) int32 {
	return in*in + in
}

// Compute returns in*in + in with int32 wraparound.
func (s *Surface) Compute(in int32) int32 {
	return Compute(in)
}

// InvokeCallback runs cb with the default surface.
func InvokeCallback(cb Callback, state unsafe.Pointer, async bool) (Status, error) {
	return defaultSurface.InvokeCallback(cb, state, async)
}

// InvokeCallback delivers a payload to cb.
//
// When async is false, cb(SyncPayload, state) runs on the calling goroutine
// and StatusComplete is returned after it finishes. When async is true, a
// detached goroutine runs cb(AsyncPayload, state) and StatusPending is
// returned without waiting for it. The goroutine is never joined or
// cancelled; callers that need to know when it has run must signal from
// inside cb. Each asynchronous call starts its own goroutine, so calling
// this in a tight loop is unbounded.
//
// state is forwarded untouched.
func (s *Surface) InvokeCallback(cb Callback, state unsafe.Pointer, async bool) (Status, error) {
	if isNilCallback(cb) {
		s.log.WithFields(logrus.Fields{
			"function": "InvokeCallback",
			"async":    async,
		}).Error("Refusing to invoke nil callback")
		return StatusComplete, ErrNilCallback
	}

	if !async {
		s.log.WithFields(logrus.Fields{
			"function": "InvokeCallback",
			"payload":  SyncPayload,
		}).Debug("Invoking callback synchronously")

		cb.Invoke(SyncPayload, state)
		return StatusComplete, nil
	}

	s.log.WithFields(logrus.Fields{
		"function": "InvokeCallback",
		"payload":  AsyncPayload,
	}).Debug("Dispatching callback to detached goroutine")

	go cb.Invoke(AsyncPayload, state)
	return StatusPending, nil
}
