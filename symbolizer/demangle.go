// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package symbolizer // import "go.opentelemetry.io/mixedstack/symbolizer"

import (
	"fmt"

	"github.com/ianlancetaylor/demangle"
)

// DemangleMode selects how mangled C++ and Rust names are rendered.
type DemangleMode int

const (
	// DemangleNone keeps names as found in the symbol tables.
	DemangleNone DemangleMode = iota
	// DemangleSimplified drops parameter and template argument lists.
	DemangleSimplified
	// DemangleFull renders the complete demangled signature.
	DemangleFull
)

var demangleModeNames = map[DemangleMode]string{
	DemangleNone:       "none",
	DemangleSimplified: "simplified",
	DemangleFull:       "full",
}

func (m DemangleMode) String() string {
	if name, ok := demangleModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("DemangleMode(%d)", int(m))
}

// ParseDemangleMode converts a mode name into a DemangleMode.
func ParseDemangleMode(s string) (DemangleMode, error) {
	for mode, name := range demangleModeNames {
		if name == s {
			return mode, nil
		}
	}
	return DemangleNone, fmt.Errorf("unknown demangle mode %q", s)
}

// demangleName returns the demangled form of name, or name itself if it is not
// a mangled symbol.
func demangleName(name string, mode DemangleMode) string {
	switch mode {
	case DemangleSimplified:
		return demangle.Filter(name, demangle.NoParams, demangle.NoTemplateParams,
			demangle.NoClones)
	case DemangleFull:
		return demangle.Filter(name)
	default:
		return name
	}
}
