// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v3/ffcli"
)

type modulesCmd struct {
	*globals
}

func newModulesCmd(g *globals) *ffcli.Command {
	args := &modulesCmd{globals: g}

	return &ffcli.Command{
		Name:       "modules",
		Exec:       args.exec,
		ShortUsage: "modules",
		ShortHelp:  "List the executable modules of the process",
		FlagSet:    flag.NewFlagSet("modules", flag.ExitOnError),
	}
}

func (cmd *modulesCmd) exec(context.Context, []string) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "base\tend\toffset\tpath")
	for _, m := range cmd.capturer.Modules() {
		fmt.Fprintf(tw, "%#x\t%#x\t%#x\t%s\n", uint64(m.Base), uint64(m.End()),
			m.FileOffset, m.Path)
	}
	return tw.Flush()
}
