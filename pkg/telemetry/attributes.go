// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry configures logging, tracing and metrics, and names the
// attributes the executor attaches to its spans and measurements.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys.
const (
	AttrRunID          = "synai.run.id"
	AttrOrchestrator   = "synai.orchestrator"
	AttrWorkflow       = "synai.workflow"
	AttrAgentID        = "synai.agent.id"
	AttrAgentType      = "synai.agent.type"
	AttrIntentName     = "synai.intent.name"
	AttrIntentKind     = "synai.intent.kind"
	AttrStatementKind  = "synai.statement.kind"
	AttrMode           = "synai.mode"
	AttrConnectFrom    = "synai.connect.from"
	AttrConnectTo      = "synai.connect.to"
	AttrConnectAsync   = "synai.connect.async"
	AttrConnectTimeout = "synai.connect.timeout_s"
	AttrTransform      = "synai.connect.transform"
	AttrErrorCode      = "synai.error.code"
	AttrRunStatus      = "synai.run.status"
)

// Execution modes.
const (
	ModeMock    = "mock"
	ModeAdapter = "adapter"
)

// RunAttributes describes one execution.
func RunAttributes(runID, orchestrator, workflow string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
		attribute.String(AttrOrchestrator, orchestrator),
		attribute.String(AttrWorkflow, workflow),
	}
}

// IntentAttributes describes one intent statement.
func IntentAttributes(agentID, agentType, intent, kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrStatementKind, "intent"),
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrAgentType, agentType),
		attribute.String(AttrIntentName, intent),
		attribute.String(AttrIntentKind, kind),
	}
}

// ConnectAttributes describes one connect statement. Unset options are left out.
func ConnectAttributes(from, to string, async bool, timeout int, transform string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrStatementKind, "connect"),
		attribute.String(AttrConnectFrom, from),
		attribute.String(AttrConnectTo, to),
	}
	if async {
		attrs = append(attrs, attribute.Bool(AttrConnectAsync, true))
	}
	if timeout > 0 {
		attrs = append(attrs, attribute.Int(AttrConnectTimeout, timeout))
	}
	if transform != "" {
		attrs = append(attrs, attribute.String(AttrTransform, transform))
	}
	return attrs
}
