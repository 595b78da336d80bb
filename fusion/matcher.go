// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package fusion // import "go.opentelemetry.io/mixedstack/fusion"

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"

	"go.opentelemetry.io/mixedstack/libpf"
)

// RuntimeMatcher classifies native frames as belonging to the interpreter's
// own runtime. A frame is runtime code if its module path, or the base name
// of it, matches one of the module patterns, or if its function name starts
// with one of the function prefixes. The latter serves hosts where the
// interpreter is linked into the main executable.
//
// Module patterns use glob syntax where '*' stops at '/' and '**' does not.
type RuntimeMatcher struct {
	modules  []glob.Glob
	prefixes []string
}

// NewRuntimeMatcher compiles the module patterns.
func NewRuntimeMatcher(modulePatterns, functionPrefixes []string) (*RuntimeMatcher, error) {
	m := &RuntimeMatcher{
		modules:  make([]glob.Glob, 0, len(modulePatterns)),
		prefixes: make([]string, 0, len(functionPrefixes)),
	}
	for _, pattern := range modulePatterns {
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid runtime module pattern %q: %w", pattern, err)
		}
		m.modules = append(m.modules, g)
	}
	for _, prefix := range functionPrefixes {
		if prefix != "" {
			m.prefixes = append(m.prefixes, prefix)
		}
	}
	return m, nil
}

// IsRuntime reports whether frame is interpreter runtime code. Frames of
// unknown modules are never runtime code unless a function prefix matches.
func (m *RuntimeMatcher) IsRuntime(frame libpf.NativeFrame) bool {
	if m == nil {
		return false
	}
	if frame.ModulePath != "" && frame.ModulePath != libpf.UnknownModule {
		base := path.Base(frame.ModulePath)
		for _, g := range m.modules {
			if g.Match(frame.ModulePath) || g.Match(base) {
				return true
			}
		}
	}
	if frame.FunctionName != "" {
		for _, prefix := range m.prefixes {
			if strings.HasPrefix(frame.FunctionName, prefix) {
				return true
			}
		}
	}
	return false
}
