package harness

import (
	"context"
	"errors"
	"fmt"
	"runtime/cgo"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"

	nativecallback "github.com/opd-ai/nativecallback"
)

var (
	// ErrNilInvoker is returned by NewDriver when no invoker is given.
	ErrNilInvoker = errors.New("invoker is nil")
	// ErrMissingCompletion is returned when IO_COMPLETE was reported but the
	// callback never delivered a value.
	ErrMissingCompletion = errors.New("completion reported but no value delivered")
	// ErrUnexpectedStatus is returned when the status does not match the
	// requested mode.
	ErrUnexpectedStatus = errors.New("unexpected status for requested mode")
	// ErrUnexpectedPayload is returned when the delivered value does not
	// identify the path the status claims ran.
	ErrUnexpectedPayload = errors.New("unexpected callback payload")
)

// Invoker delivers a payload to a callback, now or later.
// *nativecallback.Surface and cabi.Invoker satisfy it.
//
// state is a pointer to Go memory. An Invoker that crosses into C must keep
// it on the Go side, as cabi.Invoker does, rather than hand it to C code that
// outlives the call.
type Invoker interface {
	InvokeCallback(cb nativecallback.Callback, state unsafe.Pointer, async bool) (nativecallback.Status, error)
}

// Style selects how the driver waits for a callback.
type Style int

const (
	// StyleOneShot allocates a fresh CompletionSource per invocation and
	// reads the value directly when IO_COMPLETE is reported.
	StyleOneShot Style = iota
	// StyleReusable reuses one ResettableSource per driver and reads the
	// value directly when IO_COMPLETE is reported. Invocations on the same
	// driver are serialised.
	StyleReusable
	// StyleAlwaysAwait allocates per invocation and always waits, even when
	// IO_COMPLETE is reported.
	StyleAlwaysAwait
	// StyleReusableAwait reuses one ResettableSource and always waits on a
	// ticket built after the call returns.
	StyleReusableAwait
	// StylePrepared reuses one ResettableSource and always waits on the Task
	// the source prepared when it was reset.
	StylePrepared
)

var styleNames = map[Style]string{
	StyleOneShot:       "oneshot",
	StyleReusable:      "reusable",
	StyleAlwaysAwait:   "always-await",
	StyleReusableAwait: "reusable-await",
	StylePrepared:      "prepared",
}

// Styles returns every style in declaration order.
func Styles() []Style {
	return []Style{StyleOneShot, StyleReusable, StyleAlwaysAwait, StyleReusableAwait, StylePrepared}
}

// String returns the flag spelling of the style.
func (s Style) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

// ParseStyle parses the flag spelling of a style.
func ParseStyle(name string) (Style, error) {
	for style, n := range styleNames {
		if strings.EqualFold(n, name) {
			return style, nil
		}
	}
	return 0, fmt.Errorf("unknown style %q", name)
}

func (s Style) reusable() bool {
	return s == StyleReusable || s == StyleReusableAwait || s == StylePrepared
}

func (s Style) alwaysAwait() bool {
	return s == StyleAlwaysAwait || s == StyleReusableAwait || s == StylePrepared
}

// Options configures a Driver.
type Options struct {
	// Timeout bounds the wait for an asynchronous callback.
	Timeout time.Duration
	Style   Style
	// TimeProvider defaults to the system clock.
	TimeProvider TimeProvider
	// Metrics may be nil.
	Metrics *Metrics
	// Logger defaults to the standard logrus logger.
	Logger *logrus.Entry
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Timeout: 5 * time.Second,
		Style:   StyleOneShot,
	}
}

// Result is the outcome of one invocation.
type Result struct {
	Value   int32
	Status  nativecallback.Status
	Latency time.Duration
}

// Driver invokes the native surface and turns each callback into a value
// the caller can wait on.
type Driver struct {
	invoker  Invoker
	opts     Options
	clock    TimeProvider
	log      *logrus.Entry
	mu       sync.Mutex
	reusable *ResettableSource
}

// NewDriver creates a Driver. Zero-valued option fields take their defaults.
func NewDriver(invoker Invoker, opts Options) (*Driver, error) {
	if invoker == nil {
		return nil, ErrNilInvoker
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if _, ok := styleNames[opts.Style]; !ok {
		return nil, fmt.Errorf("invalid style: %v", opts.Style)
	}

	d := &Driver{
		invoker: invoker,
		opts:    opts,
		clock:   opts.TimeProvider,
		log:     opts.Logger,
	}
	if d.clock == nil {
		d.clock = defaultTimeProvider
	}
	if d.log == nil {
		d.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Style.reusable() {
		d.reusable = NewResettableSource()
	}
	return d, nil
}

// deliverCallback resolves the completion referenced by the handle in state.
// The handle is released here, exactly once per invocation.
var deliverCallback = nativecallback.CallbackFunc(func(value int32, state unsafe.Pointer) {
	h := *(*cgo.Handle)(state)
	c := h.Value().(completion)
	h.Delete()

	if err := c.deliver(value); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "deliverCallback",
			"value":    value,
			"error":    err.Error(),
		}).Warn("Dropping callback result")
	}
})

// acquire returns the completion for one invocation and a release func.
func (d *Driver) acquire() (completion, func()) {
	if !d.opts.Style.reusable() {
		return NewCompletionSource(), func() {}
	}

	d.mu.Lock()
	version := d.reusable.Reset()
	if d.opts.Style == StylePrepared {
		return d.reusable.Task(), d.mu.Unlock
	}
	return ticket{src: d.reusable, version: version}, d.mu.Unlock
}

// Invoke runs one invocation and waits for its callback value.
//
// The state handed to the invoker is a pointer to a cgo.Handle referencing
// the completion; the callback resolves the handle, deletes it and sets the
// result.
func (d *Driver) Invoke(ctx context.Context, nativeAsync bool) (Result, error) {
	result, err := d.invoke(ctx, nativeAsync)
	if err != nil {
		d.opts.Metrics.fail(nativeAsync, err)
		d.log.WithFields(logrus.Fields{
			"function":     "Invoke",
			"native_async": nativeAsync,
			"style":        d.opts.Style.String(),
			"error":        err.Error(),
		}).Warn("Invocation failed")
		return result, err
	}

	d.opts.Metrics.observe(nativeAsync, result.Status, result.Latency)
	d.log.WithFields(logrus.Fields{
		"function":     "Invoke",
		"native_async": nativeAsync,
		"status":       result.Status.String(),
		"value":        result.Value,
		"latency":      result.Latency,
	}).Debug("Invocation completed")
	return result, nil
}

func (d *Driver) invoke(ctx context.Context, nativeAsync bool) (Result, error) {
	c, release := d.acquire()
	defer release()

	start := d.clock.Now()
	h := cgo.NewHandle(c)

	status, err := d.invoker.InvokeCallback(deliverCallback, unsafe.Pointer(&h), nativeAsync)
	if err != nil {
		h.Delete()
		return Result{}, fmt.Errorf("invoke callback: %w", err)
	}

	result := Result{Status: status}
	want := expectedStatus(nativeAsync)

	var delivered bool
	if status == nativecallback.StatusComplete {
		if result.Value, delivered = c.try(); !delivered {
			// IO_COMPLETE means no callback is still to come, so nothing
			// else will release the handle.
			h.Delete()
			if status != want {
				return result, fmt.Errorf("%w: got %v, want %v", ErrUnexpectedStatus, status, want)
			}
			return result, ErrMissingCompletion
		}
	}
	if status != want {
		return result, fmt.Errorf("%w: got %v, want %v", ErrUnexpectedStatus, status, want)
	}

	if !delivered || d.opts.Style.alwaysAwait() {
		waitCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()

		value, err := c.wait(waitCtx)
		if err != nil {
			return result, err
		}
		result.Value = value
	}

	result.Latency = d.clock.Now().Sub(start)

	if want := expectedPayload(status); result.Value != want {
		return result, fmt.Errorf("%w: got %d, want %d", ErrUnexpectedPayload, result.Value, want)
	}
	return result, nil
}

func expectedStatus(nativeAsync bool) nativecallback.Status {
	if nativeAsync {
		return nativecallback.StatusPending
	}
	return nativecallback.StatusComplete
}

func expectedPayload(status nativecallback.Status) int32 {
	if status == nativecallback.StatusPending {
		return nativecallback.AsyncPayload
	}
	return nativecallback.SyncPayload
}
