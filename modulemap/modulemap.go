// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package modulemap maps instruction pointers to the loaded module that owns
// them.
package modulemap // import "go.opentelemetry.io/mixedstack/modulemap"

import (
	"fmt"
	"sort"

	"go.opentelemetry.io/mixedstack/libpf"
	"go.opentelemetry.io/mixedstack/process"
)

// ModuleRange is the executable address range of one loaded module.
type ModuleRange struct {
	// Base is the first address of the range.
	Base libpf.Address
	// Size is the length of the range in bytes.
	Size uint64
	// Path is the path of the module file, or process.VdsoPathName.
	Path string
	// FileOffset is the file offset mapped at Base.
	FileOffset uint64
}

// End returns the first address after the range.
func (m ModuleRange) End() libpf.Address {
	return m.Base + libpf.Address(m.Size)
}

// Contains reports whether addr lies in [Base, Base+Size).
func (m ModuleRange) Contains(addr libpf.Address) bool {
	return addr >= m.Base && addr < m.End()
}

// IsVDSO reports whether the range is the kernel provided vdso, which has no
// backing file.
func (m ModuleRange) IsVDSO() bool {
	return m.Path == process.VdsoPathName
}

func (m ModuleRange) String() string {
	return fmt.Sprintf("%#x-%#x %s", uint64(m.Base), uint64(m.End()), m.Path)
}

// Set is an immutable collection of module ranges sorted by Base.
type Set struct {
	ranges []ModuleRange
}

// NewSet returns a set holding a sorted copy of ranges. Ranges without size
// are dropped.
func NewSet(ranges []ModuleRange) *Set {
	sorted := make([]ModuleRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Size > 0 {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Base < sorted[j].Base
	})
	return &Set{ranges: sorted}
}

// FromMappings builds a set from the executable file backed mappings (and the
// vdso) of a memory map.
func FromMappings(mappings []process.Mapping) *Set {
	ranges := make([]ModuleRange, 0, len(mappings)/2)
	for i := range mappings {
		m := &mappings[i]
		if !m.IsModule() {
			continue
		}
		ranges = append(ranges, ModuleRange{
			Base:       libpf.Address(m.Vaddr),
			Size:       m.Length,
			Path:       m.Path,
			FileOffset: m.FileOffset,
		})
	}
	return NewSet(ranges)
}

// Lookup finds the range with the largest base <= addr and returns it if it
// contains addr.
func (s *Set) Lookup(addr libpf.Address) (ModuleRange, bool) {
	if s == nil {
		return ModuleRange{}, false
	}
	// Index of the first range starting above addr.
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].Base > addr
	})
	if i == 0 {
		return ModuleRange{}, false
	}
	r := s.ranges[i-1]
	if !r.Contains(addr) {
		return ModuleRange{}, false
	}
	return r, true
}

// Len returns the number of ranges.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ranges)
}

// Ranges returns a copy of the sorted ranges.
func (s *Set) Ranges() []ModuleRange {
	if s == nil {
		return nil
	}
	return append([]ModuleRange(nil), s.ranges...)
}
