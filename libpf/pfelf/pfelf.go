// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package pfelf opens ELF module files and extracts what symbolization needs:
// the file offset to virtual address mapping, symbol tables and the
// MiniDebugInfo section.
package pfelf // import "go.opentelemetry.io/mixedstack/libpf/pfelf"

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
	"golang.org/x/exp/mmap"

	"go.opentelemetry.io/mixedstack/libpf"
)

// maxMiniDebugInfoSize limits the decompressed size of .gnu_debugdata.
const maxMiniDebugInfoSize = 64 * 1024 * 1024

var (
	// ErrNoMiniDebugInfo is returned if the file has no .gnu_debugdata section.
	ErrNoMiniDebugInfo = errors.New("no .gnu_debugdata section")
	// ErrNoSymbols is returned if the requested symbol table is missing or
	// holds no functions.
	ErrNoSymbols = errors.New("no function symbols")
)

// File is an ELF file backed by a read-only memory mapping or an in-memory
// buffer.
type File struct {
	*elf.File
	path   string
	closer io.Closer
}

// Open memory maps the file at path and parses its ELF headers.
func Open(path string) (*File, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	ef, err := elf.NewFile(r)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to parse ELF %s: %w", path, err)
	}
	return &File{File: ef, path: path, closer: r}, nil
}

// NewFile parses an ELF file from r. The caller keeps ownership of r.
func NewFile(r io.ReaderAt, path string) (*File, error) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &File{File: ef, path: path}, nil
}

// Path returns the path the file was opened from.
func (f *File) Path() string {
	return f.path
}

// Close releases the memory mapping.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

// symbolMap builds a SymbolMap from the function symbols of syms.
func symbolMap(syms []elf.Symbol) (*libpf.SymbolMap, error) {
	symmap := libpf.NewSymbolMap(len(syms))
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 || s.Name == "" {
			continue
		}
		if s.Section == elf.SHN_UNDEF {
			continue
		}
		symmap.Add(libpf.Symbol{
			Name:    libpf.SymbolName(s.Name),
			Address: libpf.SymbolValue(s.Value),
			Size:    s.Size,
		})
	}
	if symmap.Len() == 0 {
		return nil, ErrNoSymbols
	}
	symmap.Finalize()
	return symmap, nil
}

// ReadSymbols returns the functions of the .symtab section.
func (f *File) ReadSymbols() (*libpf.SymbolMap, error) {
	syms, err := f.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, ErrNoSymbols
		}
		return nil, err
	}
	return symbolMap(syms)
}

// ReadDynamicSymbols returns the functions of the .dynsym section.
func (f *File) ReadDynamicSymbols() (*libpf.SymbolMap, error) {
	syms, err := f.DynamicSymbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, ErrNoSymbols
		}
		return nil, err
	}
	return symbolMap(syms)
}

// MiniDebugInfo returns the ELF file embedded xz-compressed in the
// .gnu_debugdata section. It usually carries a .symtab with the local
// functions that were stripped from the main file.
func (f *File) MiniDebugInfo() (*File, error) {
	sec := f.Section(".gnu_debugdata")
	if sec == nil {
		return nil, ErrNoMiniDebugInfo
	}
	compressed, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read .gnu_debugdata: %w", err)
	}
	data, err := decompressXZ(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress .gnu_debugdata: %w", err)
	}
	return NewFile(bytes.NewReader(data), f.path+"[.gnu_debugdata]")
}

func decompressXZ(compressed []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, maxMiniDebugInfoSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxMiniDebugInfoSize {
		return nil, fmt.Errorf("decompressed size exceeds %d bytes", maxMiniDebugInfoSize)
	}
	return data, nil
}
