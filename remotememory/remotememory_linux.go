//go:build linux

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package remotememory // import "go.opentelemetry.io/mixedstack/remotememory"

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"go.opentelemetry.io/mixedstack/libpf"
)

var selfPID = os.Getpid()

// selfMemory reads the own address space using process_vm_readv syscalls.
type selfMemory struct{}

func (selfMemory) ReadAt(p []byte, off int64) (int, error) {
	numBytesWanted := len(p)
	if numBytesWanted == 0 {
		return 0, nil
	}
	localIov := []unix.Iovec{{Base: &p[0]}}
	localIov[0].SetLen(numBytesWanted)
	remoteIov := []unix.RemoteIovec{{Base: uintptr(off), Len: numBytesWanted}}
	numBytesRead, err := unix.ProcessVMReadv(selfPID, localIov, remoteIov, 0)
	if err != nil {
		err = fmt.Errorf("failed to read at 0x%x: %w", off, err)
	} else if numBytesRead != numBytesWanted {
		err = fmt.Errorf("failed to read at 0x%x: got only %d of %d",
			off, numBytesRead, numBytesWanted)
	}
	return numBytesRead, err
}

type wordReader struct {
	buf    [8]byte
	local  [1]unix.Iovec
	remote [1]unix.RemoteIovec
}

func (r *wordReader) init() {
	r.local[0].Base = &r.buf[0]
	r.local[0].SetLen(len(r.buf))
	r.remote[0].Len = len(r.buf)
}

// Word reads the 8 byte little-endian word at addr.
func (r *WordReader) Word(addr libpf.Address) (uint64, error) {
	r.remote[0].Base = uintptr(addr)
	n, err := unix.ProcessVMReadv(selfPID, r.local[:], r.remote[:], 0)
	if err != nil {
		return 0, fmt.Errorf("failed to read at 0x%x: %w", uint64(addr), err)
	}
	if n != len(r.buf) {
		return 0, fmt.Errorf("failed to read at 0x%x: got only %d of %d",
			uint64(addr), n, len(r.buf))
	}
	return binary.LittleEndian.Uint64(r.buf[:]), nil
}
