// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"runtime"

	"github.com/peterbourgon/ff/v3/ffcli"

	"go.opentelemetry.io/mixedstack/vc"
)

func newVersionCmd(g *globals) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "version",
		ShortHelp:  "Print build information and the selected native walker",
		FlagSet:    flag.NewFlagSet("version", flag.ExitOnError),
		Exec: func(context.Context, []string) error {
			printf("version %s revision %s built %s\n", orUnknown(vc.Version()),
				orUnknown(vc.Revision()), orUnknown(vc.BuildTimestamp()))
			printf("%s/%s native=%t\n", runtime.GOOS, runtime.GOARCH,
				g.capturer.NativeAvailable())
			return nil
		},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
