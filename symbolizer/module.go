// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package symbolizer // import "go.opentelemetry.io/mixedstack/symbolizer"

import (
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/mixedstack/internal/log"
	"go.opentelemetry.io/mixedstack/libpf"
	"go.opentelemetry.io/mixedstack/libpf/pfelf"
)

// symbolInfo is the outcome of symbolizing one address.
type symbolInfo struct {
	function string
	file     string
	line     uint
}

// namedSymbolMap is a symbol table together with the section it came from.
type namedSymbolMap struct {
	source string
	*libpf.SymbolMap
}

// moduleInfo holds the symbolization data of one module file. It is built
// once and only read afterward. The underlying file is closed after loading.
type moduleInfo struct {
	fileID libpf.FileID
	mapper pfelf.AddressMapper

	// debug is nil if the module has no usable DWARF data.
	debug *dwarfIndex
	// symbols are consulted in order.
	symbols []namedSymbolMap
}

// fileIDKey identifies a version of a file on disk.
type fileIDKey struct {
	size  int64
	mtime int64
}

type fileIDEntry struct {
	key    fileIDKey
	fileID libpf.FileID
}

func statKey(path string) (fileIDKey, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileIDKey{}, err
	}
	if !fi.Mode().IsRegular() {
		return fileIDKey{}, fmt.Errorf("%s is not a regular file", path)
	}
	return fileIDKey{size: fi.Size(), mtime: fi.ModTime().UnixNano()}, nil
}

// loadModule opens path and extracts its address mapper, DWARF index and
// symbol tables.
func loadModule(path string, fileID libpf.FileID) (*moduleInfo, error) {
	ef, err := pfelf.Open(path)
	if err != nil {
		return nil, err
	}
	defer ef.Close()

	info := &moduleInfo{
		fileID: fileID,
		mapper: ef.GetAddressMapper(),
	}

	if data, err := ef.DWARF(); err == nil {
		if info.debug, err = newDWARFIndex(data); err != nil {
			log.Debugf("Failed to index DWARF of %s: %v", path, err)
		}
	}

	if symmap, err := ef.ReadSymbols(); err == nil {
		info.symbols = append(info.symbols, namedSymbolMap{".symtab", symmap})
	} else if !errors.Is(err, pfelf.ErrNoSymbols) {
		log.Debugf("Failed to read .symtab of %s: %v", path, err)
	}
	if symmap, err := ef.ReadDynamicSymbols(); err == nil {
		info.symbols = append(info.symbols, namedSymbolMap{".dynsym", symmap})
	} else if !errors.Is(err, pfelf.ErrNoSymbols) {
		log.Debugf("Failed to read .dynsym of %s: %v", path, err)
	}
	if mini, err := ef.MiniDebugInfo(); err == nil {
		if symmap, err := mini.ReadSymbols(); err == nil {
			info.symbols = append(info.symbols, namedSymbolMap{".gnu_debugdata", symmap})
		}
	} else if !errors.Is(err, pfelf.ErrNoMiniDebugInfo) {
		log.Debugf("Failed to read MiniDebugInfo of %s: %v", path, err)
	}

	return info, nil
}

// symbolize looks up the ELF virtual address addr. DWARF is tried first, the
// symbol tables only supply a function name.
func (m *moduleInfo) symbolize(addr uint64) (symbolInfo, bool) {
	var info symbolInfo
	if m.debug != nil {
		var ok bool
		if info, ok = m.debug.lookup(addr); ok && info.function != "" {
			return info, true
		}
	}
	for _, symmap := range m.symbols {
		name, _, ok := symmap.LookupByAddress(libpf.SymbolValue(addr))
		if ok {
			info.function = string(name)
			return info, true
		}
	}
	return info, info.file != ""
}

// symbolTable returns the symbol table read from the named section, or nil.
func (m *moduleInfo) symbolTable(source string) *libpf.SymbolMap {
	for _, symmap := range m.symbols {
		if symmap.source == source {
			return symmap.SymbolMap
		}
	}
	return nil
}
