// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/mixedstack/libpf"

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// FrameID represents a native frame as an address in the ELF virtual address
// space of an executable file.
type FrameID struct {
	fileID  FileID
	address Address
}

// NewFrameID creates a new FrameID from the fileID and the file-relative address.
func NewFrameID(fileID FileID, address Address) FrameID {
	return FrameID{
		fileID:  fileID,
		address: address,
	}
}

// Bytes returns the frameid as byte sequence.
func (f FrameID) Bytes() []byte {
	var frameID [24]byte
	copy(frameID[:], f.fileID.Bytes())
	binary.BigEndian.PutUint64(frameID[16:], uint64(f.address))
	return frameID[:]
}

// Hash calculates a hash from the frameid.
// xxh3 is 4x faster than fnv.
func (f FrameID) Hash() uint64 {
	return xxh3.Hash(f.Bytes())
}

// Hash32 returns a 32 bits hash of the input.
// It's main purpose is to be used as key for caching.
func (f FrameID) Hash32() uint32 {
	return uint32(f.Hash())
}

// FileID returns the fileID part of the frameID.
func (f FrameID) FileID() FileID {
	return f.fileID
}

// Address returns the file-relative address part of the frameID.
func (f FrameID) Address() Address {
	return f.address
}

func (f FrameID) String() string {
	return fmt.Sprintf("%s+%#x", f.fileID, uint64(f.address))
}
