//go:build !linux && !darwin

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package process // import "go.opentelemetry.io/mixedstack/process"

import (
	"debug/elf"
	"fmt"
	"os"
	"reflect"

	"go.opentelemetry.io/mixedstack/internal/log"
)

// anchor is a function whose link-time address is looked up in the
// executable's symbol table to compute the load slide.
//
//go:noinline
func anchor() {}

const anchorName = "go.opentelemetry.io/mixedstack/process.anchor"

func anchorAddress() uint64 {
	return uint64(reflect.ValueOf(anchor).Pointer())
}

// SelfMappings derives the mapping of the main executable from its on-disk
// image. Platforms without a textual memory map only expose the executable,
// so shared libraries resolve to unknown.
func SelfMappings() ([]Mapping, uint32, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNoMappings, err)
	}

	m, err := elfMapping(exe)
	if err == nil {
		return []Mapping{m}, 0, nil
	}
	log.Debugf("ELF image %s: %v", exe, err)
	return nil, 0, ErrNoMappings
}

func elfMapping(exe string) (Mapping, error) {
	f, err := elf.Open(exe)
	if err != nil {
		return Mapping{}, err
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		return Mapping{}, err
	}
	var symValue uint64
	for _, s := range syms {
		if s.Name == anchorName {
			symValue = s.Value
			break
		}
	}
	if symValue == 0 {
		return Mapping{}, fmt.Errorf("symbol %s not found", anchorName)
	}
	slide := anchorAddress() - symValue
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Flags&elf.PF_X == 0 {
			continue
		}
		return Mapping{
			Vaddr:      p.Vaddr + slide,
			Length:     p.Memsz,
			Flags:      p.Flags,
			FileOffset: p.Off,
			Path:       exe,
		}, nil
	}
	return Mapping{}, fmt.Errorf("no executable segment")
}
