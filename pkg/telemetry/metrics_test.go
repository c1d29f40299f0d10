// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestExecutorMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewExecutorMetrics(mp.Meter(MeterName))
	if err != nil {
		t.Fatalf("NewExecutorMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordIntent(ctx, "LLM", ModeMock, time.Millisecond)
	m.RecordIntent(ctx, "TOOL", ModeAdapter, time.Millisecond)
	m.RecordAdapterError(ctx, "LLM", synerrors.New(synerrors.CodeGeneration, "down", nil))
	m.RecordAdapterError(ctx, "LLM", errors.New("plain"))
	m.RecordAdapterError(ctx, "LLM", nil)
	m.RecordConnect(ctx, true)
	m.RecordWarning(ctx, synerrors.WarnMissingAgent)

	got := collect(t, reader)
	want := map[string]int64{
		"synai.intents.total":  2,
		"synai.adapter.errors": 2,
		"synai.connects.total": 1,
		"synai.warnings.total": 1,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %d, want %d", name, got[name], v)
		}
	}
}

func TestNilExecutorMetrics(t *testing.T) {
	var m *ExecutorMetrics
	ctx := context.Background()
	m.RecordIntent(ctx, "LLM", ModeMock, 0)
	m.RecordAdapterError(ctx, "LLM", errors.New("x"))
	m.RecordConnect(ctx, false)
	m.RecordWarning(ctx, synerrors.WarnMissingAgent)
}

func TestConnectAttributes(t *testing.T) {
	if got := len(ConnectAttributes("a", "b", false, 0, "")); got != 3 {
		t.Fatalf("unset options must be omitted, got %d attributes", got)
	}
	if got := len(ConnectAttributes("a", "b", true, 5, "upper")); got != 6 {
		t.Fatalf("expected 6 attributes, got %d", got)
	}
}
