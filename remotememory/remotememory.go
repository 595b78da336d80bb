// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// remotememory provides fault-safe access to the memory space of the own
// process. Reads go through the kernel, so an unmapped or protected address
// becomes an error instead of a crash. The ReaderAt interface is used for the
// basic access, and convenience functions read specific data types.
package remotememory // import "go.opentelemetry.io/mixedstack/remotememory"

import (
	"encoding/binary"
	"errors"
	"io"

	"go.opentelemetry.io/mixedstack/libpf"
)

// ErrUnsupported is returned on platforms without a checked read facility.
var ErrUnsupported = errors.New("checked memory reads are not supported on this platform")

// RemoteMemory implements a set of convenience functions to access memory
// through a checked reader.
type RemoteMemory struct {
	io.ReaderAt
}

// Valid determines if this RemoteMemory instance contains a valid reader
func (rm RemoteMemory) Valid() bool {
	return rm.ReaderAt != nil
}

// Read fills slice p[] with data from memory at address addr
func (rm RemoteMemory) Read(addr libpf.Address, p []byte) error {
	_, err := rm.ReadAt(p, int64(addr))
	return err
}

// PtrChecked reads a native pointer from memory
func (rm RemoteMemory) PtrChecked(addr libpf.Address) (libpf.Address, error) {
	var buf [8]byte
	if err := rm.Read(addr, buf[:]); err != nil {
		return 0, err
	}
	return libpf.Address(binary.LittleEndian.Uint64(buf[:])), nil
}

// Ptr reads a native pointer from memory, returning 0 on failure
func (rm RemoteMemory) Ptr(addr libpf.Address) libpf.Address {
	ptr, err := rm.PtrChecked(addr)
	if err != nil {
		return 0
	}
	return ptr
}

// Uint32 reads a 32-bit unsigned integer from memory
func (rm RemoteMemory) Uint32(addr libpf.Address) uint32 {
	var buf [4]byte
	if rm.Read(addr, buf[:]) != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(buf[:])
}

// Bytes reads n bytes at addr into a new slice.
func (rm RemoteMemory) Bytes(addr libpf.Address, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := rm.Read(addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Self returns a RemoteMemory reading the memory of the calling process.
func Self() RemoteMemory {
	return RemoteMemory{ReaderAt: selfMemory{}}
}

// WordReader reads single machine words from the own process without
// allocating. A WordReader is not safe for concurrent use; the unwinder keeps
// one per pooled walk state.
type WordReader struct {
	wordReader
}

// NewWordReader returns a reader for the memory of the calling process.
func NewWordReader() *WordReader {
	r := &WordReader{}
	r.init()
	return r
}
