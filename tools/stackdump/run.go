// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"go.opentelemetry.io/mixedstack/interpreter"
	"go.opentelemetry.io/mixedstack/interpreter/wasm"
	"go.opentelemetry.io/mixedstack/libpf"
)

type runCmd struct {
	*globals
	wasmPath   string
	function   string
	hostModule string
}

func newRunCmd(g *globals) *ffcli.Command {
	args := &runCmd{globals: g}

	set := flag.NewFlagSet("run", flag.ExitOnError)
	set.StringVar(&args.wasmPath, "wasm", "", "Path of the WebAssembly guest")
	set.StringVar(&args.function, "func", "run", "Exported guest function to call")
	set.StringVar(&args.hostModule, "host-module", "env",
		"Import module whose functions capture a trace when called")

	return &ffcli.Command{
		Name:       "run",
		Exec:       args.exec,
		ShortUsage: "run -wasm <file> [flags]",
		ShortHelp:  "Run a WebAssembly guest and print the fused traces of its host calls",
		FlagSet:    set,
	}
}

func (cmd *runCmd) exec(ctx context.Context, _ []string) error {
	if cmd.wasmPath == "" {
		return errors.New("please specify `-wasm`")
	}
	bin, err := os.ReadFile(cmd.wasmPath)
	if err != nil {
		return fmt.Errorf("failed to read guest: %w", err)
	}

	rec := wasm.NewRecorder(cmd.capturer.Dispatch())
	ctx = rec.WithContext(ctx)

	// Host call listeners need the interpreter engine.
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		return fmt.Errorf("failed to compile guest: %w", err)
	}

	host := r.NewHostModuleBuilder(cmd.hostModule)
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != cmd.hostModule {
			continue
		}
		results := len(def.ResultTypes())
		host.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, mod api.Module,
				stack []uint64) {
				cmd.dump(rec.Stack(mod))
				clear(stack[:results])
			}), def.ParamTypes(), def.ResultTypes()).
			WithName(name).
			Export(name)
	}
	if _, err = host.Instantiate(ctx); err != nil {
		return fmt.Errorf("failed to instantiate host module: %w", err)
	}

	guest, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("guest"))
	if err != nil {
		return fmt.Errorf("failed to instantiate guest: %w", err)
	}
	fn := guest.ExportedFunction(cmd.function)
	if fn == nil {
		return fmt.Errorf("guest does not export %q", cmd.function)
	}
	if n := len(fn.Definition().ParamTypes()); n != 0 {
		return fmt.Errorf("%s takes %d parameters, expected none", cmd.function, n)
	}
	_, err = fn.Call(ctx)
	return err
}

func (cmd *runCmd) dump(interp []interpreter.Frame) {
	trace, err := cmd.capturer.Capture(interp)
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	printf("trace %s hash %s partial=%t mismatch=%t\n", trace.ID, trace.Hash,
		trace.Partial, trace.Mismatch)
	for i := range trace.Frames {
		frame := &trace.Frames[i]
		switch {
		case frame.Type == libpf.FrameTypeInterpreted:
			printf("  %s\n", frame)
		case frame.Unattributed:
			printf("  %s [unattributed]\n", frame)
		default:
			printf("  %s [dispatch #%d]\n", frame, frame.Dispatch)
		}
	}
}
