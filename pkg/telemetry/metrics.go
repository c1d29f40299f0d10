// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

// MeterName is the instrumentation scope of executor metrics.
const MeterName = "synai/executor"

// ExecutorMetrics counts what an executor does.
type ExecutorMetrics struct {
	intents        metric.Int64Counter
	adapterErrors  metric.Int64Counter
	connects       metric.Int64Counter
	warnings       metric.Int64Counter
	intentDuration metric.Float64Histogram
}

// NewExecutorMetrics creates the instruments on meter, or on the global
// meter provider when meter is nil.
func NewExecutorMetrics(meter metric.Meter) (*ExecutorMetrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}
	intents, err := meter.Int64Counter("synai.intents.total",
		metric.WithDescription("Intents executed by agent type and mode"))
	if err != nil {
		return nil, err
	}
	adapterErrors, err := meter.Int64Counter("synai.adapter.errors",
		metric.WithDescription("Adapter failures recovered into outputs, by error code"))
	if err != nil {
		return nil, err
	}
	connects, err := meter.Int64Counter("synai.connects.total",
		metric.WithDescription("Connect statements processed"))
	if err != nil {
		return nil, err
	}
	warnings, err := meter.Int64Counter("synai.warnings.total",
		metric.WithDescription("Execution warnings by code"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("synai.intent.duration",
		metric.WithDescription("Intent execution time"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &ExecutorMetrics{
		intents:        intents,
		adapterErrors:  adapterErrors,
		connects:       connects,
		warnings:       warnings,
		intentDuration: duration,
	}, nil
}

// RecordIntent counts one intent and its duration.
func (m *ExecutorMetrics) RecordIntent(ctx context.Context, agentType, mode string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAgentType, agentType),
		attribute.String(AttrMode, mode),
	)
	m.intents.Add(ctx, 1, attrs)
	m.intentDuration.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
}

// RecordAdapterError counts one recovered adapter failure.
func (m *ExecutorMetrics) RecordAdapterError(ctx context.Context, agentType string, err error) {
	if m == nil || err == nil {
		return
	}
	code := string(synerrors.CodeOf(err))
	if code == "" {
		code = "UNKNOWN"
	}
	m.adapterErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentType, agentType),
		attribute.String(AttrErrorCode, code),
	))
}

// RecordConnect counts one connect statement.
func (m *ExecutorMetrics) RecordConnect(ctx context.Context, propagated bool) {
	if m == nil {
		return
	}
	m.connects.Add(ctx, 1, metric.WithAttributes(attribute.Bool("propagated", propagated)))
}

// RecordWarning counts one warning.
func (m *ExecutorMetrics) RecordWarning(ctx context.Context, code synerrors.WarningCode) {
	if m == nil {
		return
	}
	m.warnings.Add(ctx, 1, metric.WithAttributes(attribute.String("warning.code", string(code))))
}
