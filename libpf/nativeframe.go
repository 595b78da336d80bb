// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/mixedstack/libpf"

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

// UnknownModule is the module path of frames whose address is not covered by
// any loaded module.
const UnknownModule = "[unknown]"

// NativeFrame is one native call-stack entry.
type NativeFrame struct {
	// Address is the instruction pointer of the frame.
	Address Address
	// ReturnAddress is set when Address was read from a saved return
	// address, meaning the call instruction is right before it.
	ReturnAddress bool

	// FunctionName is empty if the address could not be symbolized.
	FunctionName string
	// ModulePath is the path of the owning module or UnknownModule.
	ModulePath string
	// SourceFile and SourceLine are only set if debug info was available.
	SourceFile string
	SourceLine uint
}

// LookupAddress returns the address that identifies the call site. For return
// addresses this is the last byte of the call instruction.
func (f *NativeFrame) LookupAddress() Address {
	if f.ReturnAddress && f.Address > 0 {
		return f.Address - 1
	}
	return f.Address
}

// Resolved reports whether symbolization found a function name.
func (f *NativeFrame) Resolved() bool {
	return f.FunctionName != ""
}

func (f NativeFrame) String() string {
	name := f.FunctionName
	if name == "" {
		name = "??"
	}
	s := fmt.Sprintf("%#016x %s (%s)", uint64(f.Address), name, f.ModulePath)
	if f.SourceFile != "" {
		s += fmt.Sprintf(" %s:%d", f.SourceFile, f.SourceLine)
	}
	return s
}

// NativeStack is a leaf-first sequence of native frames.
type NativeStack []NativeFrame

// Filter returns the frames for which keep returns true, preserving order.
func (s NativeStack) Filter(keep func(*NativeFrame) bool) NativeStack {
	out := make(NativeStack, 0, len(s))
	for i := range s {
		if keep(&s[i]) {
			out = append(out, s[i])
		}
	}
	return out
}

// InModule returns the frames owned by the module at path.
func (s NativeStack) InModule(path string) NativeStack {
	return s.Filter(func(f *NativeFrame) bool {
		return f.ModulePath == path
	})
}

// ModuleGroup is the set of frames of one module, in stack order.
type ModuleGroup struct {
	ModulePath string
	Frames     NativeStack
}

// GroupByModule partitions the stack by module path. Groups are ordered by
// the first appearance of their module, starting at the leaf.
func (s NativeStack) GroupByModule() []ModuleGroup {
	index := make(map[string]int)
	var groups []ModuleGroup
	for _, f := range s {
		i, ok := index[f.ModulePath]
		if !ok {
			i = len(groups)
			index[f.ModulePath] = i
			groups = append(groups, ModuleGroup{ModulePath: f.ModulePath})
		}
		groups[i].Frames = append(groups[i].Frames, f)
	}
	return groups
}

// TableColumns are the column names used by Table.
var TableColumns = []string{
	"address", "function_name", "module_path", "source_file", "source_line",
}

// Table returns the stack as rows of TableColumns. Missing values are empty
// strings.
func (s NativeStack) Table() [][]string {
	rows := make([][]string, 0, len(s))
	for _, f := range s {
		line := ""
		if f.SourceLine != 0 {
			line = strconv.FormatUint(uint64(f.SourceLine), 10)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%#x", uint64(f.Address)),
			f.FunctionName,
			f.ModulePath,
			f.SourceFile,
			line,
		})
	}
	return rows
}

// WriteTable renders Table with a header line as aligned text.
func (s NativeStack) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(TableColumns, "\t")); err != nil {
		return err
	}
	for _, row := range s.Table() {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
