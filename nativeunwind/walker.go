// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nativeunwind // import "go.opentelemetry.io/mixedstack/nativeunwind"

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.opentelemetry.io/mixedstack/internal/log"
	"go.opentelemetry.io/mixedstack/libpf"
	"go.opentelemetry.io/mixedstack/libpf/xsync"
	"go.opentelemetry.io/mixedstack/metrics"
	"go.opentelemetry.io/mixedstack/remotememory"
)

// backend collects return addresses into st.pcs[:maxFrames]. With skip 0 the
// first address is a return address into the caller of walk.
type backend interface {
	Type() BackendType
	walk(st *walkState, skip, maxFrames int) (int, error)
}

// walkState is the per-walk scratch memory. It is pooled so that a walk does
// not allocate while it reads the stack.
type walkState struct {
	pcs  [MaxFrames]uintptr
	code [8]byte
	mem  *remotememory.WordReader
}

var statePool = sync.Pool{
	New: func() any {
		return &walkState{mem: remotememory.NewWordReader()}
	},
}

// defaultBackend is the process-wide backend behind BackendAuto.
var defaultBackend xsync.Once[BackendType]

func selectDefault() BackendType {
	if compiledDefault == BackendDisabled {
		return BackendDisabled
	}
	if err := Probe(BackendFramePointer); err != nil {
		log.Debugf("Frame pointer unwinding not used: %v", err)
		return BackendCallers
	}
	return BackendFramePointer
}

// DefaultBackend returns the backend BackendAuto resolves to. It is decided
// on first use and cached for the lifetime of the process.
func DefaultBackend() BackendType {
	typ, _ := defaultBackend.GetOrInit(func() (BackendType, error) {
		typ := selectDefault()
		log.Debugf("Native unwind backend: %s", typ)
		return typ, nil
	})
	return *typ
}

// IsAvailable reports whether the default backend collects native frames.
func IsAvailable() bool {
	return DefaultBackend() != BackendDisabled
}

// Probe checks whether the backend works in this build and process.
func Probe(typ BackendType) error {
	switch typ {
	case BackendAuto, BackendCallers, BackendDisabled:
		return nil
	case BackendFramePointer:
		b := newFramePointerBackend(false)
		if b == nil {
			return fmt.Errorf("%w: frame pointers are not supported on %s/%s",
				ErrBackendUnavailable, runtime.GOOS, runtime.GOARCH)
		}
		st := statePool.Get().(*walkState)
		defer statePool.Put(st)
		n, err := b.walk(st, 0, 4)
		if n == 0 {
			if err == nil {
				err = errors.New("no frames")
			}
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		if runtime.FuncForPC(st.pcs[0]-1) == nil {
			return fmt.Errorf("%w: first frame %#x is not a Go function",
				ErrBackendUnavailable, st.pcs[0])
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrBackendUnavailable, typ)
}

// Walker collects native stacks with one backend.
type Walker struct {
	backend backend
	typ     BackendType
}

// New returns a Walker for the requested backend. A requested backend that
// does not work falls back to the callers backend.
func New(opts Options) *Walker {
	typ := opts.Backend
	if typ == BackendAuto {
		typ = DefaultBackend()
	} else if err := Probe(typ); err != nil {
		log.Warnf("Falling back to %s unwinding: %v", BackendCallers, err)
		typ = BackendCallers
	}

	w := &Walker{typ: typ}
	switch typ {
	case BackendCallers:
		w.backend = &callersBackend{}
	case BackendFramePointer:
		w.backend = newFramePointerBackend(opts.VerifyReturnAddresses)
	}
	return w
}

// Backend returns the backend the walker uses.
func (w *Walker) Backend() BackendType {
	return w.typ
}

// IsAvailable reports whether the walker collects native frames.
func (w *Walker) IsAvailable() bool {
	return w.backend != nil
}

// Walk returns the native stack of the calling goroutine, leaf first,
// starting at the caller of Walk. At most maxDepth frames are returned;
// values outside (0, MaxFrames] mean MaxFrames.
//
// If the walk stops at a corrupted or unreadable frame, the frames collected
// so far are returned with an error wrapping ErrPartialUnwind.
//
//go:noinline
func (w *Walker) Walk(maxDepth int) (libpf.NativeStack, error) {
	return w.walk(1, maxDepth)
}

// WalkSkip is like Walk but omits the innermost skip frames above the caller
// of WalkSkip.
//
//go:noinline
func (w *Walker) WalkSkip(skip, maxDepth int) (libpf.NativeStack, error) {
	if skip < 0 {
		skip = 0
	}
	return w.walk(skip+1, maxDepth)
}

//go:noinline
func (w *Walker) walk(skip, maxDepth int) (libpf.NativeStack, error) {
	if w.backend == nil {
		return libpf.NativeStack{}, nil
	}
	if maxDepth <= 0 || maxDepth > MaxFrames {
		maxDepth = MaxFrames
	}

	st := statePool.Get().(*walkState)
	defer statePool.Put(st)

	n, err := w.backend.walk(st, skip+1, maxDepth)
	stack := make(libpf.NativeStack, n)
	for i := range n {
		stack[i] = libpf.NativeFrame{
			Address:       libpf.Address(st.pcs[i]),
			ReturnAddress: true,
			ModulePath:    libpf.UnknownModule,
		}
	}
	metrics.Add(metrics.IDNativeFrames, metrics.MetricValue(n))
	if err != nil {
		metrics.Add(metrics.IDPartialUnwinds, 1)
		return stack, fmt.Errorf("%w: %v", ErrPartialUnwind, err)
	}
	return stack, nil
}
