// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package process // import "go.opentelemetry.io/mixedstack/process"

import (
	"bufio"
	"debug/elf"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/mixedstack/internal/log"
	"go.opentelemetry.io/mixedstack/libpf/stringutil"
)

// mappingParseBufferSize defines the initial buffer size used to store lines from
// /proc/PID/maps during parsing of mappings.
const mappingParseBufferSize = 256

var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, mappingParseBufferSize)
		return &buf
	},
}

func trimMappingPath(path string) string {
	// Trim the deleted indication from the path.
	// See path_with_deleted in linux/fs/d_path.c
	path = strings.TrimSuffix(path, " (deleted)")
	if path == "/dev/zero" {
		// Some JIT engines map JIT area from /dev/zero
		// make it anonymous.
		return ""
	}
	return path
}

func parseHex(s, what string, numParseErrors *uint32) (uint64, bool) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		log.Debugf("%s: failed to convert %s to uint64: %v", what, s, err)
		*numParseErrors++
		return 0, false
	}
	return v, true
}

// ParseMappings parses the textual memory map format of /proc/PID/maps.
// Readable or executable mappings are returned in file order. Lines that do
// not parse are skipped and counted in the second return value.
func ParseMappings(mapsFile io.Reader) ([]Mapping, uint32, error) {
	numParseErrors := uint32(0)
	mappings := make([]Mapping, 0, 32)
	scanner := bufio.NewScanner(mapsFile)
	scanBuf := bufPool.Get().(*[]byte)
	if scanBuf == nil {
		return mappings, 0, errors.New("failed to get memory from sync pool")
	}
	defer bufPool.Put(scanBuf)

	scanner.Buffer(*scanBuf, 8192)
	for scanner.Scan() {
		var fields [6]string

		line := scanner.Text()
		if stringutil.FieldsN(line, fields[:]) < 5 {
			numParseErrors++
			continue
		}
		var addrs [2]string
		if stringutil.SplitN(fields[0], "-", addrs[:]) < 2 {
			numParseErrors++
			continue
		}
		startStr, endStr := addrs[0], addrs[1]

		mapsFlags := fields[1]
		if len(mapsFlags) < 3 {
			numParseErrors++
			continue
		}
		flags := elf.ProgFlag(0)
		if mapsFlags[0] == 'r' {
			flags |= elf.PF_R
		}
		if mapsFlags[1] == 'w' {
			flags |= elf.PF_W
		}
		if mapsFlags[2] == 'x' {
			flags |= elf.PF_X
		}

		// Ignore non-readable and non-executable mappings
		if flags&(elf.PF_R|elf.PF_X) == 0 {
			continue
		}
		inode, err := strconv.ParseUint(fields[4], 10, 64)
		if err != nil {
			log.Debugf("inode: failed to convert %s to uint64: %v", fields[4], err)
			numParseErrors++
			continue
		}

		majorStr, minorStr, ok := strings.Cut(fields[3], ":")
		if !ok {
			numParseErrors++
			continue
		}
		major, ok := parseHex(majorStr, "major device", &numParseErrors)
		if !ok {
			continue
		}
		minor, ok := parseHex(minorStr, "minor device", &numParseErrors)
		if !ok {
			continue
		}
		device := major<<8 + minor

		var path string
		if inode == 0 {
			switch fields[5] {
			case "[vdso]":
				// Map to something filename looking with synthesized inode
				path = VdsoPathName
				device = 0
				inode = vdsoInode
			case "":
				// This is an anonymous mapping, keep it
			default:
				// Ignore other mappings that are invalid, non-existent or are special pseudo-files
				continue
			}
		} else {
			path = trimMappingPath(fields[5])
		}

		vaddr, ok := parseHex(startStr, "vaddr", &numParseErrors)
		if !ok {
			continue
		}
		vend, ok := parseHex(endStr, "vend", &numParseErrors)
		if !ok {
			continue
		}
		fileOffset, ok := parseHex(fields[2], "fileOffset", &numParseErrors)
		if !ok {
			continue
		}

		mappings = append(mappings, Mapping{
			Vaddr:      vaddr,
			Length:     vend - vaddr,
			Flags:      flags,
			FileOffset: fileOffset,
			Device:     device,
			Inode:      inode,
			Path:       path,
		})
	}
	return mappings, numParseErrors, scanner.Err()
}
