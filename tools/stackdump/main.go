// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// stackdump provides a tool for inspecting cross-domain stack captures. It
// lists the modules of the own process, prints its native stack and runs
// WebAssembly guests that capture fused traces when calling into the host.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/mixedstack/capture"
	"go.opentelemetry.io/mixedstack/config"
	mslog "go.opentelemetry.io/mixedstack/log"
)

// globals holds the state shared by all subcommands. It is complete once the
// root flags are parsed.
type globals struct {
	cfg      config.Config
	capturer *capture.Capturer
}

func (g *globals) init() error {
	if g.cfg.Verbose {
		mslog.SetLevel(log.DebugLevel)
	}
	g.cfg.Dump()

	c, err := capture.New(&g.cfg)
	if err != nil {
		return err
	}
	g.capturer = c
	return nil
}

func main() {
	log.SetReportCaller(false)
	log.SetFormatter(&log.TextFormatter{})

	g := &globals{cfg: config.Default()}
	set := flag.NewFlagSet("stackdump", flag.ExitOnError)
	g.cfg.RegisterFlags(set)

	root := ffcli.Command{
		Name:       "stackdump",
		ShortUsage: "stackdump [flags] <subcommand> [flags]",
		ShortHelp:  "Tool for inspecting cross-domain stack captures",
		FlagSet:    set,
		Options:    config.ParseOptions(),
		Subcommands: []*ffcli.Command{
			newModulesCmd(g),
			newNativeCmd(g),
			newRunCmd(g),
			newVersionCmd(g),
		},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}

	if err := root.Parse(os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
	if err := g.init(); err != nil {
		log.Fatalf("%v", err)
	}
	if err := root.Run(context.Background()); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.Fatalf("%v", err)
		}
	}
}

func printf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stdout, format, args...); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
}
