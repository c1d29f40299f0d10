// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package natsbus

import (
	"strings"

	"github.com/jllopis/synai/pkg/events"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "synai"

// TopicRunEvent is the subject an event of typ for run runID is published
// on: <prefix>.run.<run id>.<event type>.
func TopicRunEvent(prefix, runID string, typ events.Type) string {
	return prefixOrDefault(prefix) + ".run." + token(runID) + "." + string(typ)
}

// TopicRun matches every event of one run.
func TopicRun(prefix, runID string) string {
	return prefixOrDefault(prefix) + ".run." + token(runID) + ".>"
}

// TopicAllRuns matches every run event.
func TopicAllRuns(prefix string) string {
	return prefixOrDefault(prefix) + ".run.>"
}

func prefixOrDefault(prefix string) string {
	if prefix == "" {
		return DefaultPrefix
	}
	return prefix
}

// token makes s usable as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}
