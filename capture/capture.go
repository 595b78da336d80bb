// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture produces cross-domain stack traces. A capture walks the
// native stack of the calling goroutine, resolves the owning module and the
// symbol of every frame and fuses the result with the interpreted stack
// handed in by the interpreter adapter.
package capture // import "go.opentelemetry.io/mixedstack/capture"

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"go.opentelemetry.io/mixedstack/config"
	"go.opentelemetry.io/mixedstack/fusion"
	"go.opentelemetry.io/mixedstack/internal/log"
	"go.opentelemetry.io/mixedstack/interpreter"
	"go.opentelemetry.io/mixedstack/libpf"
	"go.opentelemetry.io/mixedstack/metrics"
	"go.opentelemetry.io/mixedstack/modulemap"
	"go.opentelemetry.io/mixedstack/nativeunwind"
	"go.opentelemetry.io/mixedstack/symbolizer"
)

// ErrCaptureFailed is returned when a capture hit a fault it could not
// recover from. Only that capture is lost.
var ErrCaptureFailed = errors.New("stack capture failed")

// stackWalker is the part of nativeunwind.Walker a capture needs.
type stackWalker interface {
	IsAvailable() bool
	WalkSkip(skip, maxDepth int) (libpf.NativeStack, error)
}

// Capturer captures fused stack traces. It is safe for concurrent use; every
// capture works on its own buffers.
type Capturer struct {
	maxDepth int
	walker   stackWalker
	modules  *modulemap.Resolver
	symbols  *symbolizer.Resolver
	engine   *fusion.Engine
	dispatch interpreter.DispatchSet
}

// New builds a Capturer from a validated copy of cfg.
func New(cfg *config.Config) (*Capturer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Validate checked that the names parse.
	backend, _ := nativeunwind.ParseBackend(cfg.Backend)
	policy, _ := modulemap.ParsePolicy(cfg.ModuleCachePolicy)
	demangle, _ := symbolizer.ParseDemangleMode(cfg.Demangle)

	matcher, err := fusion.NewRuntimeMatcher(cfg.RuntimeModules, cfg.RuntimeFunctionPrefixes)
	if err != nil {
		return nil, err
	}
	symbols, err := symbolizer.New(symbolizer.Options{
		CacheSize:       uint32(cfg.SymbolCacheSize),
		ModuleCacheSize: uint32(cfg.ModuleCacheSize),
		Demangle:        demangle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create symbolizer: %w", err)
	}

	return &Capturer{
		maxDepth: cfg.MaxDepth,
		walker: nativeunwind.New(nativeunwind.Options{
			Backend:               backend,
			VerifyReturnAddresses: cfg.VerifyReturnAddresses,
		}),
		modules:  modulemap.New(policy),
		symbols:  symbols,
		engine:   fusion.NewEngine(matcher),
		dispatch: interpreter.NewDispatchSet(cfg.ForeignCallNames...),
	}, nil
}

// NativeAvailable reports whether captures include native frames.
func (c *Capturer) NativeAvailable() bool {
	return c.walker.IsAvailable()
}

// Invalidate reports a dynamic module load or unload. With the notify module
// cache policy the next capture re-reads the loaded modules.
func (c *Capturer) Invalidate() {
	c.modules.Invalidate()
}

// Modules returns the loaded modules known to the capturer.
func (c *Capturer) Modules() []modulemap.ModuleRange {
	if err := c.modules.Prepare(); err != nil {
		log.Debugf("Failed to read loaded modules: %v", err)
	}
	return c.modules.Modules()
}

// Dispatch returns the foreign-call primitive names of the capturer.
func (c *Capturer) Dispatch() interpreter.DispatchSet {
	return c.dispatch
}

// NativeStack returns the symbolized native stack, leaf first, starting at
// the caller of NativeStack. An error wrapping nativeunwind.ErrPartialUnwind
// comes with the frames collected before the walk stopped.
//
//go:noinline
func (c *Capturer) NativeStack() (stack libpf.NativeStack, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack, err = nil, c.failed(r)
		}
	}()
	return c.nativeStack(1)
}

// Capture returns the fused trace of interp, innermost call first, and the
// native stack below the caller of Capture. Use interpreter.LeafFirst for
// stacks listed outermost call first. Calls to the configured
// foreign-call primitives are marked as dispatches in addition to the frames
// the adapter already flagged.
//
// A partial native walk is reported through Trace.Partial. The only error is
// ErrCaptureFailed.
//
//go:noinline
func (c *Capturer) Capture(interp []interpreter.Frame) (*libpf.Trace, error) {
	return c.capture(1, interp)
}

// CaptureFrom is like Capture with the interpreted stack taken from src.
//
//go:noinline
func (c *Capturer) CaptureFrom(src interpreter.StackSource) (*libpf.Trace, error) {
	return c.capture(1, src.InterpretedStack())
}

//go:noinline
func (c *Capturer) capture(skip int, interp []interpreter.Frame) (trace *libpf.Trace,
	err error) {
	defer func() {
		if r := recover(); r != nil {
			trace, err = nil, c.failed(r)
		}
	}()
	metrics.Add(metrics.IDCaptures, 1)

	stack, walkErr := c.nativeStack(skip + 1)
	partial := false
	if walkErr != nil {
		if !errors.Is(walkErr, nativeunwind.ErrPartialUnwind) {
			return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, walkErr)
		}
		log.Debugf("Capture continues with %d native frames: %v", len(stack), walkErr)
		partial = true
	}

	res := c.engine.Fuse(c.dispatch.Mark(interp), stack)
	trace = res.Trace()
	trace.ID = uuid.New()
	trace.Partial = partial
	return trace, nil
}

// nativeStack walks the stack starting skip frames above its caller and
// symbolizes the frames.
//
//go:noinline
func (c *Capturer) nativeStack(skip int) (libpf.NativeStack, error) {
	if !c.walker.IsAvailable() {
		return libpf.NativeStack{}, nil
	}
	if err := c.modules.Prepare(); err != nil {
		log.Debugf("Failed to read loaded modules: %v", err)
	}
	stack, err := c.walker.WalkSkip(skip+1, c.maxDepth)
	c.symbols.SymbolizeStack(stack, c.modules)
	return stack, err
}

func (c *Capturer) failed(r any) error {
	metrics.Add(metrics.IDCaptureFailures, 1)
	log.Warnf("Stack capture failed: %v", r)
	return fmt.Errorf("%w: %v", ErrCaptureFailed, r)
}
