// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jllopis/synai/pkg/telemetry"
)

func (a *app) runCommand() *cobra.Command {
	var (
		opts         runOptions
		orchestrator string
		timeout      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <artifact|file.synai>",
		Short: "Execute the run directive of a linked artifact",
		Long: `run executes one run directive. The input is a linked artifact or a
source file, which is compiled in memory first.

Agents whose type has no adapter produce mock outputs; --mock forces mock
outputs for every agent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			shutdown, err := telemetry.InitWithConfig("synai", version, telemetry.Config{
				Exporter:     a.cfg.Telemetry.Exporter,
				OTLPEndpoint: a.cfg.Telemetry.OTLPEndpoint,
				OTLPInsecure: a.cfg.Telemetry.OTLPInsecure,
				Writer:       a.errOut,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(context.WithoutCancel(ctx)); err != nil {
					a.logger.Warn("cli.telemetry.shutdown.failed", "error", err)
				}
			}()

			art, err := a.loadArtifact(args[0])
			if err != nil {
				return err
			}
			s, err := a.newSession(ctx, opts)
			if err != nil {
				return err
			}
			defer func() {
				if err := s.Close(); err != nil {
					a.logger.Warn("cli.session.close.failed", "error", err)
				}
			}()

			res, err := s.executor.Run(ctx, art, orchestrator)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(res)
			}
			renderResult(a.out, newStyles(a.out), res)
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.mock, "mock", false, "Produce mock outputs for every agent")
	f.StringVar(&orchestrator, "orchestrator", "", "Run directive to execute, by orchestrator name (default: first)")
	f.DurationVar(&timeout, "timeout", 0, "Cancel the run after this duration")
	f.StringVar(&opts.auditPath, "audit", "", "Record statements in this SQLite database")
	f.StringVar(&opts.natsURL, "nats", "", "Publish run events to this NATS server")
	f.BoolVar(&opts.embedded, "embedded-nats", false, "Publish run events to an in-process NATS server")
	f.BoolVar(&opts.memory, "memory", false, "Embed intent outputs into the configured vector store")
	return cmd
}
