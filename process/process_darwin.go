//go:build darwin

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package process // import "go.opentelemetry.io/mixedstack/process"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"go.opentelemetry.io/mixedstack/internal/log"
)

const libSystem = "/usr/lib/libSystem.B.dylib"

// dyld holds the image iteration functions of the dynamic linker.
type dyld struct {
	imageCount       func() uint32
	imageName        func(uint32) string
	imageHeader      func(uint32) unsafe.Pointer
	imageVMAddrSlide func(uint32) uintptr
}

var loadDyld = sync.OnceValues(func() (*dyld, error) {
	lib, err := purego.Dlopen(libSystem, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", libSystem, err)
	}
	d := &dyld{}
	purego.RegisterLibFunc(&d.imageCount, lib, "_dyld_image_count")
	purego.RegisterLibFunc(&d.imageName, lib, "_dyld_get_image_name")
	purego.RegisterLibFunc(&d.imageHeader, lib, "_dyld_get_image_header")
	purego.RegisterLibFunc(&d.imageVMAddrSlide, lib, "_dyld_get_image_vmaddr_slide")
	return d, nil
})

// SelfMappings returns the __TEXT segment of every image the dynamic linker
// has loaded into the process, the main executable first. The segments are
// read from the in-memory image headers.
func SelfMappings() ([]Mapping, uint32, error) {
	d, err := loadDyld()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNoMappings, err)
	}

	numParseErrors := uint32(0)
	count := d.imageCount()
	mappings := make([]Mapping, 0, count)
	for i := range count {
		hdr := d.imageHeader(i)
		if hdr == nil {
			// The image was unloaded since the count was read.
			continue
		}
		name := d.imageName(i)
		header := unsafe.Slice((*byte)(hdr), machHeader64Size)
		size, err := machoCommandsSize(header)
		if err != nil {
			log.Debugf("Image %s: %v", name, err)
			numParseErrors++
			continue
		}
		m, err := machoTextMapping(unsafe.Slice((*byte)(hdr), size),
			uint64(d.imageVMAddrSlide(i)), name)
		if err != nil {
			log.Debugf("Image %s: %v", name, err)
			numParseErrors++
			continue
		}
		mappings = append(mappings, m)
	}
	if len(mappings) == 0 {
		return nil, numParseErrors, ErrNoMappings
	}
	return mappings, numParseErrors, nil
}
