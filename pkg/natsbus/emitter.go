// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package natsbus

import (
	"context"
	"log/slog"

	"github.com/jllopis/synai/pkg/events"
)

// Emitter publishes execution events as JSON. Publish failures are logged
// and never interrupt the run.
type Emitter struct {
	client *Client
	prefix string
	logger *slog.Logger
}

// NewEmitter returns an emitter publishing under prefix.
func NewEmitter(c *Client, prefix string, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{client: c, prefix: prefix, logger: logger}
}

func (e *Emitter) Emit(_ context.Context, ev events.Event) {
	subject := TopicRunEvent(e.prefix, ev.RunID, ev.Type)
	if err := e.client.PublishJSON(subject, ev); err != nil {
		e.logger.Warn("natsbus.publish.failed", "subject", subject, "error", err)
	}
}
