// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package symbolizer // import "go.opentelemetry.io/mixedstack/symbolizer"

import (
	"os"
	"path/filepath"
	"runtime"

	"go.opentelemetry.io/mixedstack/libpf"
	"go.opentelemetry.io/mixedstack/libpf/xsync"
)

// executablePaths holds the names under which the running executable can
// appear in the memory map.
var executablePaths xsync.Once[[]string]

func isExecutable(path string) bool {
	paths, err := executablePaths.GetOrInit(func() ([]string, error) {
		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}
		paths := []string{exe}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil && resolved != exe {
			paths = append(paths, resolved)
		}
		return paths, nil
	})
	if err != nil {
		return false
	}
	for _, p := range *paths {
		if p == path {
			return true
		}
	}
	return false
}

// goSymbolize resolves addr with the pclntab of the running executable.
// For inlined code the innermost function is reported.
func goSymbolize(addr libpf.Address) (symbolInfo, bool) {
	pc := uintptr(addr)
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return symbolInfo{}, false
	}
	name := fn.Name()
	if name == "" {
		return symbolInfo{}, false
	}
	file, line := fn.FileLine(pc)
	return symbolInfo{
		function: name,
		file:     file,
		line:     uint(max(line, 0)),
	}, true
}
