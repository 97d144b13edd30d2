//go:build cgo

package main

import (
	"github.com/opd-ai/nativecallback/harness"
	"github.com/opd-ai/nativecallback/internal/cabi"
)

// nativeInvoker returns the invoker that goes through the exported C entry
// point.
func nativeInvoker() (harness.Invoker, error) {
	return cabi.NewInvoker(), nil
}
