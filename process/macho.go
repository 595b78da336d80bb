// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package process // import "go.opentelemetry.io/mixedstack/process"

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"
)

// machHeader64Size is the size of mach_header_64, the load commands follow it.
const machHeader64Size = 32

var errNoTextSegment = errors.New("no __TEXT segment")

// machoCommandsSize returns the size of the header and load commands of the
// 64-bit Mach-O image whose header is in hdr.
func machoCommandsSize(hdr []byte) (int, error) {
	if len(hdr) < machHeader64Size {
		return 0, fmt.Errorf("short Mach-O header: %d bytes", len(hdr))
	}
	var fh macho.FileHeader
	if _, err := binary.Decode(hdr, binary.LittleEndian, &fh); err != nil {
		return 0, err
	}
	if fh.Magic != macho.Magic64 {
		return 0, fmt.Errorf("unsupported Mach-O magic %#x", fh.Magic)
	}
	return machHeader64Size + int(fh.Cmdsz), nil
}

// machoTextMapping returns the mapping of the __TEXT segment of the in-memory
// Mach-O image image, moved by slide. image holds the header and all load
// commands.
func machoTextMapping(image []byte, slide uint64, path string) (Mapping, error) {
	size, err := machoCommandsSize(image)
	if err != nil {
		return Mapping{}, err
	}
	if len(image) < size {
		return Mapping{}, fmt.Errorf("truncated load commands: %d of %d bytes",
			len(image), size)
	}
	var fh macho.FileHeader
	if _, err = binary.Decode(image, binary.LittleEndian, &fh); err != nil {
		return Mapping{}, err
	}

	cmds := image[machHeader64Size:size]
	for range fh.Ncmd {
		if len(cmds) < 8 {
			break
		}
		cmd := macho.LoadCmd(binary.LittleEndian.Uint32(cmds))
		cmdLen := binary.LittleEndian.Uint32(cmds[4:])
		if cmdLen < 8 || int(cmdLen) > len(cmds) {
			return Mapping{}, fmt.Errorf("bad load command length %d", cmdLen)
		}
		if cmd == macho.LoadCmdSegment64 {
			var seg macho.Segment64
			if _, err := binary.Decode(cmds[:cmdLen], binary.LittleEndian, &seg); err != nil {
				return Mapping{}, err
			}
			if string(bytes.TrimRight(seg.Name[:], "\x00")) == "__TEXT" {
				return Mapping{
					Vaddr:      seg.Addr + slide,
					Length:     seg.Memsz,
					Flags:      elf.PF_R | elf.PF_X,
					FileOffset: seg.Offset,
					Path:       path,
				}, nil
			}
		}
		cmds = cmds[cmdLen:]
	}
	return Mapping{}, errNoTextSegment
}
