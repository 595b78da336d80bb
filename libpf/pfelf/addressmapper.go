// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package pfelf // import "go.opentelemetry.io/mixedstack/libpf/pfelf"

import (
	"debug/elf"
	"os"
)

// addressMapperPHDR contains the Program Header fields we need to cache for mapping
// file offsets to virtual addresses.
type addressMapperPHDR struct {
	offset uint64
	vaddr  uint64
	filesz uint64
}

// AddressMapper converts file offsets of executable segments to ELF virtual
// addresses.
type AddressMapper struct {
	phdrs []addressMapperPHDR
}

var pageSizeMinusOne = uint64(os.Getpagesize()) - 1

// FileOffsetToVirtualAddress attempts to convert an on-disk file offset to the
// ELF virtual address where it would be mapped by default.
func (am *AddressMapper) FileOffsetToVirtualAddress(fileOffset uint64) (uint64, bool) {
	for _, p := range am.phdrs {
		// The loader maps segments starting at the page aligned offset, so a
		// mapping may start before the segment itself.
		alignedOffset := p.offset &^ pageSizeMinusOne
		if fileOffset >= alignedOffset && fileOffset < p.offset+p.filesz {
			return p.vaddr - (p.offset - fileOffset), true
		}
	}
	return 0, false
}

// RuntimeToVirtualAddress converts an address inside a mapping of the file
// to its ELF virtual address. mappingStart and fileOffset describe the
// mapping as found in the memory map.
func (am *AddressMapper) RuntimeToVirtualAddress(addr, mappingStart,
	fileOffset uint64) (uint64, bool) {
	if addr < mappingStart {
		return 0, false
	}
	vaddr, ok := am.FileOffsetToVirtualAddress(fileOffset)
	if !ok {
		return 0, false
	}
	return vaddr + (addr - mappingStart), true
}

// NewAddressMapper returns an address mapper for the executable PT_LOAD
// segments of progs.
func NewAddressMapper(progs []*elf.Prog) AddressMapper {
	phdrs := make([]addressMapperPHDR, 0, 1)
	for _, p := range progs {
		if p.Type != elf.PT_LOAD || p.Flags&elf.PF_X == 0 {
			continue
		}
		phdrs = append(phdrs, addressMapperPHDR{
			offset: p.Off,
			vaddr:  p.Vaddr,
			filesz: p.Filesz,
		})
	}
	return AddressMapper{phdrs: phdrs}
}

// GetAddressMapper returns an address mapper for the file.
func (f *File) GetAddressMapper() AddressMapper {
	return NewAddressMapper(f.Progs)
}
