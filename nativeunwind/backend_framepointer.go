//go:build linux && (amd64 || arm64)

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nativeunwind // import "go.opentelemetry.io/mixedstack/nativeunwind"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"go.opentelemetry.io/mixedstack/libpf"
)

const (
	ptrSize = 8
	// maxFrameSize bounds the distance between two frame pointers. Larger
	// jumps mean a foreign stack or garbage.
	maxFrameSize = 1 << 24
)

var errStackMoved = errors.New("goroutine stack moved during the walk")

// framePointerBackend follows the chain of saved frame pointers. On amd64 and
// arm64 a frame pointer addresses the saved frame pointer of the caller and
// the return address is stored right above it. Every load goes through
// process_vm_readv so a broken chain ends the walk with an error.
type framePointerBackend struct {
	verify bool
}

func newFramePointerBackend(verify bool) backend {
	return &framePointerBackend{verify: verify}
}

func (*framePointerBackend) Type() BackendType {
	return BackendFramePointer
}

//go:noinline
func (b *framePointerBackend) walk(st *walkState, skip, maxFrames int) (int, error) {
	var marker byte
	for range 2 {
		before := uintptr(unsafe.Pointer(&marker))
		n, err := b.unwind(st, getfp(), skip, maxFrames)
		// A stack growth during the syscalls copies the stack and leaves the
		// frame pointers read so far stale. Redo the walk once.
		if uintptr(unsafe.Pointer(&marker)) == before {
			return n, err
		}
	}
	return 0, errStackMoved
}

func (b *framePointerBackend) unwind(st *walkState, fp uintptr, skip, maxFrames int) (int, error) {
	n := 0
	for fp != 0 && n < maxFrames {
		if fp%ptrSize != 0 {
			return n, fmt.Errorf("misaligned frame pointer %#x", fp)
		}
		next, err := st.mem.Word(libpf.Address(fp))
		if err != nil {
			return n, err
		}
		ret, err := st.mem.Word(libpf.Address(fp + ptrSize))
		if err != nil {
			return n, err
		}
		if ret == 0 {
			break
		}
		if b.verify {
			if err := b.verifyCallSite(st, ret); err != nil {
				return n, err
			}
		}

		if skip > 0 {
			skip--
		} else {
			st.pcs[n] = uintptr(ret)
			n++
		}

		if next != 0 && (uintptr(next) <= fp || uintptr(next)-fp > maxFrameSize) {
			return n, fmt.Errorf("frame pointer %#x does not follow %#x", next, fp)
		}
		fp = uintptr(next)
	}
	return n, nil
}

// verifyCallSite checks that ret directly follows a call instruction.
func (b *framePointerBackend) verifyCallSite(st *walkState, ret uint64) error {
	word, err := st.mem.Word(libpf.Address(ret - uint64(len(st.code))))
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(st.code[:], word)
	if !isCallBefore(st.code[:]) {
		return fmt.Errorf("return address %#x is not preceded by a call", ret)
	}
	return nil
}
