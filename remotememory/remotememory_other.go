//go:build !linux

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package remotememory // import "go.opentelemetry.io/mixedstack/remotememory"

import (
	"go.opentelemetry.io/mixedstack/libpf"
)

// selfMemory is the stub implementation, allowing to compile the remotememory
// package on non linux systems, always failing at runtime if used.
type selfMemory struct{}

func (selfMemory) ReadAt(_ []byte, _ int64) (int, error) {
	return 0, ErrUnsupported
}

type wordReader struct{}

func (r *wordReader) init() {}

// Word always fails on this platform.
func (r *WordReader) Word(_ libpf.Address) (uint64, error) {
	return 0, ErrUnsupported
}
