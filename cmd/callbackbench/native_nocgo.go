//go:build !cgo

package main

import (
	"errors"

	"github.com/opd-ai/nativecallback/harness"
)

func nativeInvoker() (harness.Invoker, error) {
	return nil, errors.New("--native requires a cgo build; pass --native=false")
}
