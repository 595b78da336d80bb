// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/mixedstack/nativeunwind"
)

type nativeCmd struct {
	*globals
	group bool
}

func newNativeCmd(g *globals) *ffcli.Command {
	args := &nativeCmd{globals: g}

	set := flag.NewFlagSet("native", flag.ExitOnError)
	set.BoolVar(&args.group, "group", false, "Group the frames by module")

	return &ffcli.Command{
		Name:       "native",
		Exec:       args.exec,
		ShortUsage: "native [flags]",
		ShortHelp:  "Print the symbolized native stack of this tool",
		FlagSet:    set,
	}
}

func (cmd *nativeCmd) exec(context.Context, []string) error {
	if !cmd.capturer.NativeAvailable() {
		return errors.New("native stack walking is not available")
	}
	stack, err := cmd.capturer.NativeStack()
	if err != nil {
		if !errors.Is(err, nativeunwind.ErrPartialUnwind) {
			return err
		}
		log.Warnf("%v", err)
	}

	if !cmd.group {
		return stack.WriteTable(os.Stdout)
	}
	for _, group := range stack.GroupByModule() {
		printf("%s\n", group.ModulePath)
		for _, frame := range group.Frames {
			printf("  %s\n", frame)
		}
	}
	return nil
}
