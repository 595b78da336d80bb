// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/mixedstack/libpf"

import (
	"sort"
)

// SymbolValue represents the value associated with a symbol, e.g. either an
// offset or an absolute address
type SymbolValue uint64

// SymbolName represents the name of a symbol
type SymbolName string

// SymbolNameUnknown is the value returned by SymbolMap functions when address has no symbol info.
const SymbolNameUnknown = ""

// Symbol represents the name of a symbol
type Symbol struct {
	Name    SymbolName
	Address SymbolValue
	Size    uint64
}

// SymbolMap represents a collection of function symbols that can be reverse mapped
// from an address.
type SymbolMap struct {
	// addressToSymbol is sorted by descending address once finalized.
	addressToSymbol []Symbol
}

func NewSymbolMap(capacity int) *SymbolMap {
	return &SymbolMap{
		addressToSymbol: make([]Symbol, 0, capacity),
	}
}

// Add a symbol to the map
func (symmap *SymbolMap) Add(s Symbol) {
	symmap.addressToSymbol = append(symmap.addressToSymbol, s)
}

// Finalize symbol map by sorting after all symbols are inserted via Add() calls.
// Symbols sharing an address keep the one with the largest size, which is the
// function body rather than a zero-sized label.
func (symmap *SymbolMap) Finalize() {
	syms := symmap.addressToSymbol
	sort.SliceStable(syms, func(i, j int) bool {
		if syms[i].Address != syms[j].Address {
			return syms[i].Address > syms[j].Address
		}
		return syms[i].Size > syms[j].Size
	})

	out := syms[:0]
	for i, s := range syms {
		if i > 0 && s.Address == syms[i-1].Address {
			continue
		}
		out = append(out, s)
	}

	// Adjust the overcommitted capacity
	symmap.addressToSymbol = append(make([]Symbol, 0, len(out)), out...)
}

// LookupByAddress translates the address to a symbolic information. Return empty string and
// absolute address if it did not match any symbol.
//
// A symbol without size covers the addresses up to the next higher symbol.
func (symmap *SymbolMap) LookupByAddress(val SymbolValue) (SymbolName, Address, bool) {
	syms := symmap.addressToSymbol
	i := sort.Search(len(syms), func(i int) bool {
		return val >= syms[i].Address
	})
	if i >= len(syms) {
		return SymbolNameUnknown, Address(val), false
	}
	sym := syms[i]
	if sym.Size == 0 {
		if i > 0 && val >= syms[i-1].Address {
			return SymbolNameUnknown, Address(val), false
		}
	} else if val >= sym.Address+SymbolValue(sym.Size) {
		return SymbolNameUnknown, Address(val), false
	}
	return sym.Name, Address(val - sym.Address), true
}

// VisitAll calls the provided callback with all the symbols in the map.
func (symmap *SymbolMap) VisitAll(cb func(Symbol)) {
	for _, s := range symmap.addressToSymbol {
		cb(s)
	}
}

// Len returns the number of elements in the map.
func (symmap *SymbolMap) Len() int {
	return len(symmap.addressToSymbol)
}
