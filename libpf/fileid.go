// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/mixedstack/libpf"

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	sha256 "github.com/minio/sha256-simd"
)

// FileID identifies the content of an executable file. Two files with the same
// FileID are treated as interchangeable for symbolization.
type FileID struct {
	hi, lo uint64
}

// NewFileID creates a FileID from its two halves.
func NewFileID(hi, lo uint64) FileID {
	return FileID{hi: hi, lo: lo}
}

// FileIDFromBytes parses a 16 byte slice into a FileID.
func FileIDFromBytes(b []byte) (FileID, error) {
	if len(b) != 16 {
		return FileID{}, fmt.Errorf("unexpected input size (expected 16 bytes): %d", len(b))
	}
	return NewFileID(binary.BigEndian.Uint64(b[0:8]), binary.BigEndian.Uint64(b[8:16])), nil
}

// Hi returns the high 64 bits.
func (f FileID) Hi() uint64 { return f.hi }

// Lo returns the low 64 bits.
func (f FileID) Lo() uint64 { return f.lo }

// IsZero reports whether f is the zero FileID.
func (f FileID) IsZero() bool {
	return f == FileID{}
}

// Bytes returns the big-endian representation.
func (f FileID) Bytes() []byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], f.hi)
	binary.BigEndian.PutUint64(b[8:16], f.lo)
	return b[:]
}

// StringNoQuotes returns the hex representation.
func (f FileID) StringNoQuotes() string {
	return hex.EncodeToString(f.Bytes())
}

func (f FileID) String() string {
	return f.StringNoQuotes()
}

// Hash32 returns a 32 bits hash of the input.
// It's main purpose is to be used as key for caching.
func (f FileID) Hash32() uint32 {
	return uint32(f.hi)
}

// FileIDFromExecutableReader hashes portions of the contents of the reader in order to
// generate a system-independent identifier.
//
// Hash algorithm: SHA256 of
//  1. the 4 KiB header (program headers, usually the GNU build ID),
//  2. the 4 KiB trailer (section headers, debug link),
//  3. the file length, big-endian.
func FileIDFromExecutableReader(reader io.ReadSeeker) (FileID, error) {
	h := sha256.New()

	if _, err := io.Copy(h, io.LimitReader(reader, 4096)); err != nil {
		return FileID{}, fmt.Errorf("failed to hash file header: %v", err)
	}

	size, err := reader.Seek(0, io.SeekEnd)
	if err != nil {
		return FileID{}, fmt.Errorf("failed to seek end of file: %v", err)
	}

	// Small files get parts of their content hashed twice. That is fine.
	tailBytes := min(size, 4096)
	if _, err = reader.Seek(-tailBytes, io.SeekEnd); err != nil {
		return FileID{}, fmt.Errorf("failed to seek file trailer: %v", err)
	}
	if _, err = io.Copy(h, reader); err != nil {
		return FileID{}, fmt.Errorf("failed to hash file trailer: %v", err)
	}

	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(size))
	_, _ = h.Write(length[:])

	return FileIDFromBytes(h.Sum(nil)[0:16])
}

// FileIDFromExecutableFile opens an executable file and calculates the FileID for it.
func FileIDFromExecutableFile(fileName string) (FileID, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return FileID{}, err
	}
	defer f.Close()

	return FileIDFromExecutableReader(f)
}
