// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package nativeunwind walks the native call stack of the calling goroutine.
//
// One of several backends does the walking. The build target fixes the
// default and the first use probes it once per process; see New.
package nativeunwind // import "go.opentelemetry.io/mixedstack/nativeunwind"

import (
	"errors"
	"fmt"
)

// MaxFrames is the maximum number of frames a single walk collects.
const MaxFrames = 1024

var (
	// ErrPartialUnwind is returned, wrapped with the reason, together with
	// the frames collected before the walk had to stop.
	ErrPartialUnwind = errors.New("partial native unwind")
	// ErrBackendUnavailable is returned when a backend cannot work in this
	// build or process.
	ErrBackendUnavailable = errors.New("native unwind backend unavailable")
)

// BackendType selects the unwinding backend.
type BackendType int

const (
	// BackendAuto picks the build default, subject to a capability probe.
	BackendAuto BackendType = iota
	// BackendCallers uses the Go runtime unwinder, driven by the pclntab.
	BackendCallers
	// BackendFramePointer follows the saved frame pointer chain.
	BackendFramePointer
	// BackendDisabled collects no native frames.
	BackendDisabled
)

var backendNames = map[BackendType]string{
	BackendAuto:         "auto",
	BackendCallers:      "callers",
	BackendFramePointer: "framepointer",
	BackendDisabled:     "disabled",
}

func (t BackendType) String() string {
	if name, ok := backendNames[t]; ok {
		return name
	}
	return fmt.Sprintf("BackendType(%d)", int(t))
}

// ParseBackend parses the textual backend name.
func ParseBackend(s string) (BackendType, error) {
	for t, name := range backendNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown native unwind backend %q", s)
}

// Options configures a Walker.
type Options struct {
	// Backend is the requested backend.
	Backend BackendType
	// VerifyReturnAddresses makes the frame pointer backend check that every
	// return address follows a call instruction.
	VerifyReturnAddresses bool
}
