// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package testsupport // import "go.opentelemetry.io/mixedstack/testsupport"

import (
	"debug/elf"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// FixtureFunction is the function BuildFixture programs are built around.
// It starts at line FixtureLine of FixtureFile.
const (
	FixtureFunction = "main.fixtureTarget"
	FixtureFile     = "main.go"
	FixtureLine     = 6
)

const fixtureSource = `package main

import "os"

//go:noinline
func fixtureTarget(n int) int {
	return n*3 + len(os.Args)
}

func main() {
	os.Exit(fixtureTarget(7) & 1)
}
`

// BuildFixture compiles a small Go program with its symbol table and DWARF
// data into a temporary directory and returns the path of the binary. It
// skips the test if the platform does not produce ELF files or no go
// command is available.
func BuildFixture(t testing.TB) string {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skipf("unsupported os %s", runtime.GOOS)
	}
	gocmd, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go command not available")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FixtureFile),
		[]byte(fixtureSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"),
		[]byte("module fixture\n\ngo 1.21\n"), 0o644))

	out := filepath.Join(dir, "fixture")
	cmd := exec.Command(gocmd, "build", "-o", out, "-ldflags=-compressdwarf=false", ".")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOWORK=off", "GOFLAGS=")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "go build: %s", output)
	return out
}

// FixtureAddress returns the ELF virtual address of the .symtab symbol name
// in the binary at path, read independently of the code under test.
func FixtureAddress(t testing.TB, path, name string) uint64 {
	t.Helper()
	ef, err := elf.Open(path)
	require.NoError(t, err)
	defer ef.Close()

	syms, err := ef.Symbols()
	require.NoError(t, err)
	for _, s := range syms {
		if s.Name == name {
			return s.Value
		}
	}
	require.Failf(t, "symbol not found", "%s has no symbol %s", path, name)
	return 0
}

// FixtureTextSegment returns the executable PT_LOAD segment of the binary at
// path.
func FixtureTextSegment(t testing.TB, path string) elf.ProgHeader {
	t.Helper()
	ef, err := elf.Open(path)
	require.NoError(t, err)
	defer ef.Close()

	for _, p := range ef.Progs {
		if p.Type == elf.PT_LOAD && p.Flags&elf.PF_X != 0 {
			return p.ProgHeader
		}
	}
	require.Failf(t, "no text segment", "%s has no executable PT_LOAD", path)
	return elf.ProgHeader{}
}
