// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package wasm adapts the wazero WebAssembly runtime as interpreter. Wasm
// functions are the interpreted frames and imported host functions are the
// foreign-call primitives through which wasm code reaches native code.
package wasm // import "go.opentelemetry.io/mixedstack/interpreter/wasm"

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"go.opentelemetry.io/mixedstack/interpreter"
)

// Recorder snapshots the wasm call stack whenever a host function is entered.
// A host function can then fetch the stack that led to it with Stack and hand
// it to a capture.
//
// Attach the Recorder with WithContext to the context used to instantiate
// host modules. Snapshots are kept per calling module instance, so anonymous
// instances do not share them. Calls into one instance must not run
// concurrently from several goroutines; their snapshots would interleave.
// Separate instances may be called concurrently.
type Recorder struct {
	dispatch interpreter.DispatchSet

	mu sync.Mutex
	// stacks holds, per calling module instance, the snapshots of the host
	// calls currently in progress. The innermost call is last.
	stacks map[api.Module][][]interpreter.Frame
}

var _ experimental.FunctionListenerFactory = (*Recorder)(nil)

// NewRecorder returns a Recorder. Wasm functions whose name is in dispatch are
// marked as native dispatch in addition to host functions.
func NewRecorder(dispatch interpreter.DispatchSet) *Recorder {
	return &Recorder{
		dispatch: dispatch,
		stacks:   make(map[api.Module][][]interpreter.Frame),
	}
}

// WithContext returns a context that makes wazero report host function calls
// to r.
func (r *Recorder) WithContext(ctx context.Context) context.Context {
	return experimental.WithFunctionListenerFactory(ctx, r)
}

// NewFunctionListener implements experimental.FunctionListenerFactory. Only
// host functions are listened to.
func (r *Recorder) NewFunctionListener(def api.FunctionDefinition) experimental.FunctionListener {
	if def.GoFunction() == nil {
		return nil
	}
	return &hostListener{recorder: r}
}

// Stack returns the wasm stack, innermost call first, of the innermost host
// call in progress from mod. The first frame is the host function itself. It
// returns nil if no host call from mod is in progress.
func (r *Recorder) Stack(mod api.Module) []interpreter.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := r.stacks[mod]
	if len(snapshots) == 0 {
		return nil
	}
	return slices.Clone(snapshots[len(snapshots)-1])
}

func (r *Recorder) push(module api.Module, frames []interpreter.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stacks[module] = append(r.stacks[module], frames)
}

func (r *Recorder) pop(module api.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := r.stacks[module]
	switch len(snapshots) {
	case 0:
	case 1:
		delete(r.stacks, module)
	default:
		r.stacks[module] = snapshots[:len(snapshots)-1]
	}
}

// hostListener is installed on every host function.
type hostListener struct {
	recorder *Recorder
}

// Before is called with mod being the calling module.
func (l *hostListener) Before(_ context.Context, mod api.Module, _ api.FunctionDefinition,
	_ []uint64, stack experimental.StackIterator) {
	var sites []callSite
	for stack.Next() {
		fn := stack.Function()
		sites = append(sites, newCallSite(fn.Definition(),
			fn.SourceOffsetForPC(stack.ProgramCounter())))
	}
	l.recorder.push(mod, l.recorder.frames(mod.Name(), sites))
}

func (l *hostListener) After(_ context.Context, mod api.Module, _ api.FunctionDefinition,
	_ []uint64) {
	l.recorder.pop(mod)
}

func (l *hostListener) Abort(_ context.Context, mod api.Module, _ api.FunctionDefinition,
	_ error) {
	l.recorder.pop(mod)
}

// callSite is what the adapter needs of one wazero stack entry.
type callSite struct {
	module    string
	name      string
	debugName string
	host      bool
	offset    uint64
}

func newCallSite(def api.FunctionDefinition, offset uint64) callSite {
	name := def.Name()
	if name == "" {
		if exports := def.ExportNames(); len(exports) > 0 {
			name = exports[0]
		}
	}
	return callSite{
		module:    def.ModuleName(),
		name:      name,
		debugName: def.DebugName(),
		host:      def.GoFunction() != nil,
		offset:    offset,
	}
}

// frames converts the call sites, innermost first, into interpreted frames in
// the same order. instance names the calling module and stands in for wasm
// functions whose module has no name.
func (r *Recorder) frames(instance string, sites []callSite) []interpreter.Frame {
	frames := make([]interpreter.Frame, len(sites))
	for i, site := range sites {
		f := interpreter.Frame{
			Module:   site.module,
			Function: site.name,
			Label:    site.debugName,
		}
		if f.Function == "" {
			f.Function = site.debugName
		}
		if site.host {
			f.Function = site.module + "." + site.name
			f.IsNativeDispatch = true
		} else {
			if f.Module == "" {
				f.Module = instance
			}
			if site.offset != 0 {
				f.Label = fmt.Sprintf("%s+%#x", site.debugName, site.offset)
			}
			f.IsNativeDispatch = r.dispatch.Contains(f.Function)
		}
		frames[i] = f
	}
	return frames
}
