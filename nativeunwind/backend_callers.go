// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nativeunwind // import "go.opentelemetry.io/mixedstack/nativeunwind"

import (
	"runtime"
)

// callersBackend walks with the runtime's own unwinder. It follows the
// pclntab of every Go function, including inlined frames, and cgo frames
// when a cgo traceback function is registered.
type callersBackend struct{}

func (*callersBackend) Type() BackendType {
	return BackendCallers
}

//go:noinline
func (*callersBackend) walk(st *walkState, skip, maxFrames int) (int, error) {
	// Skip runtime.Callers and this function.
	return runtime.Callers(skip+2, st.pcs[:maxFrames]), nil
}
