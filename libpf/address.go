// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package libpf holds the data model shared by the native walker, the symbolizer
// and the fusion engine.
package libpf // import "go.opentelemetry.io/mixedstack/libpf"

import "github.com/zeebo/xxh3"

// Address represents an address, or offset within a process
type Address uintptr

// Hash32 returns a 32 bits hash of the input.
// It's main purpose is to be used as key for caching.
func (adr Address) Hash32() uint32 {
	return uint32(xxh3.HashSeed(nil, uint64(adr)))
}

// Void is the empty element type for channels and sets.
type Void struct{}
