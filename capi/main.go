package main

import (
	// The C entry points are exported from cabi.
	_ "github.com/opd-ai/nativecallback/internal/cabi"
)

// This is the main package required for building as c-shared.

func main() {} // Required for c-shared build mode
