// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the synai CLI: parse, build, link and run SynAI
// workflow definitions.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jllopis/synai/pkg/config"
	"github.com/jllopis/synai/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	if err := a.rootCommand().ExecuteContext(ctx); err != nil {
		a.printError(err)
		os.Exit(1)
	}
}

// app holds the global flags and the state shared by every command.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	profile    string
	overrides  []string
	logLevel   string
	jsonOut    bool

	cfg    *config.Config
	logger *slog.Logger
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "synai",
		Short:         "SynAI workflow compiler and runner",
		Long:          "synai parses, validates, links and runs declarative multi-agent workflows.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Configuration file (YAML)")
	flags.StringVar(&a.profile, "profile", "", "Configuration profile overlay (config.<profile>.yaml)")
	flags.StringArrayVar(&a.overrides, "set", nil, "Override a configuration key (key=value), repeatable")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&a.jsonOut, "json", false, "Print machine-readable JSON")

	root.AddCommand(
		a.parseCommand(),
		a.buildCommand(),
		a.linkCommand(),
		a.runCommand(),
		a.graphCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.LoadWith(config.Options{
		Path:      a.configPath,
		Profile:   a.profile,
		Overrides: a.overrides,
	})
	if err != nil {
		return newConfigError(err, a.configPath)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = telemetry.NewLogger(a.errOut, cfg.Log.Level, cfg.Log.Format)
	return nil
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the synai version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonOut {
				return a.printJSON(map[string]string{"version": version})
			}
			_, err := io.WriteString(a.out, "synai "+version+"\n")
			return err
		},
	}
}
