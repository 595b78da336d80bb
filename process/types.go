// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package process reads the memory mappings of the own process.
package process // import "go.opentelemetry.io/mixedstack/process"

import (
	"debug/elf"
	"errors"
	"strings"
)

// ErrNoMappings is returned when no mappings can be extracted.
var ErrNoMappings = errors.New("no mappings")

// VdsoPathName is the path to use for VDSO mappings
const VdsoPathName = "linux-vdso.1.so"

// vdsoInode is the synthesized inode number for VDSO mappings
const vdsoInode = 50

// Mapping contains information about a memory mapping
type Mapping struct {
	// Vaddr is the virtual memory start for this mapping
	Vaddr uint64
	// Length is the length of the mapping
	Length uint64
	// Flags contains the mapping flags and permissions
	Flags elf.ProgFlag
	// FileOffset contains for file backed mappings the offset from the file start
	FileOffset uint64
	// Device holds the device ID where the file is located
	Device uint64
	// Inode holds the mapped file's inode number
	Inode uint64
	// Path contains the file name for file backed mappings
	Path string
}

// End returns the first address after the mapping.
func (m *Mapping) End() uint64 {
	return m.Vaddr + m.Length
}

func (m *Mapping) IsExecutable() bool {
	return m.Flags&elf.PF_X == elf.PF_X
}

func (m *Mapping) IsAnonymous() bool {
	return m.Path == "" || m.IsMemFD()
}

func (m *Mapping) IsMemFD() bool {
	return strings.HasPrefix(m.Path, "/memfd:")
}

func (m *Mapping) IsVDSO() bool {
	return m.Path == VdsoPathName
}

// IsModule reports whether the mapping holds code of a loadable module: it is
// executable and backed by a file, or it is the vdso.
func (m *Mapping) IsModule() bool {
	return m.IsExecutable() && (!m.IsAnonymous() || m.IsVDSO())
}
