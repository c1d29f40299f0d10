// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("unexpected token")
	se := New(CodeSyntax, "parse failed", cause)

	if se.Code != CodeSyntax {
		t.Errorf("expected CodeSyntax, got %v", se.Code)
	}
	if se.Message != "parse failed" {
		t.Errorf("expected message 'parse failed', got %q", se.Message)
	}
	if se.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(se, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContext(t *testing.T) {
	se := New(CodeReference, "unknown agent", nil)
	se.WithContext("agent", "coder").WithContext("workflow", "main")

	if se.Context["agent"] != "coder" {
		t.Errorf("expected context agent to be 'coder'")
	}
	if se.Context["workflow"] != "main" {
		t.Errorf("expected context workflow to be set")
	}
}

func TestWithRecoverable(t *testing.T) {
	se := New(CodeGeneration, "provider down", nil)
	if se.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}
	se.WithRecoverable(true)
	if !se.Recoverable {
		t.Errorf("expected recoverable to be true")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name string
		err  *SynaiError
		want string
	}{
		{
			name: "message only",
			err:  New(CodeLink, "no Run declaration found", nil),
			want: "[LINK_ERROR] no Run declaration found",
		},
		{
			name: "with cause",
			err:  New(CodeTool, "tool failed", errors.New("exit status 1")),
			want: "[TOOL_ERROR] tool failed: exit status 1",
		},
		{
			name: "with sorted context",
			err: New(CodeReference, "unknown agent", nil).
				WithContext("workflow", "main").
				WithContext("agent", "x"),
			want: "[REFERENCE_ERROR] unknown agent (agent=x, workflow=main)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	se := New(CodeSchema, "duplicate agent id", errors.New("dup")).WithContext("agent", "a")
	data, err := json.Marshal(se)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["code"] != "SCHEMA_ERROR" {
		t.Errorf("expected code SCHEMA_ERROR, got %v", out["code"])
	}
	if out["error"] != "dup" {
		t.Errorf("expected error dup, got %v", out["error"])
	}
}

func TestCodeOfAndIs(t *testing.T) {
	inner := New(CodeGeneration, "provider failed", nil)
	outer := New(CodeInternal, "adapter crashed", inner)
	wrapped := fmt.Errorf("executor: %w", outer)

	if got := CodeOf(wrapped); got != CodeInternal {
		t.Errorf("CodeOf = %q, want INTERNAL_ERROR", got)
	}
	if !Is(wrapped, CodeGeneration) {
		t.Errorf("expected Is to find nested GENERATION_ERROR")
	}
	if Is(wrapped, CodeLink) {
		t.Errorf("did not expect LINK_ERROR")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Errorf("expected empty code for plain error")
	}
}

func TestAsSynaiError(t *testing.T) {
	if AsSynaiError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	se := AsSynaiError(errors.New("boom"))
	if se.Code != CodeInternal {
		t.Errorf("expected plain errors to wrap as INTERNAL_ERROR, got %v", se.Code)
	}
	orig := New(CodeNotFound, "missing", nil)
	if AsSynaiError(fmt.Errorf("ctx: %w", orig)) != orig {
		t.Errorf("expected the original SynaiError from the chain")
	}
}

func TestWarningString(t *testing.T) {
	tests := []struct {
		w    Warning
		want string
	}{
		{NewWarning(WarnEmptyOrchestrator, "orchestrator has no agents"), "[EMPTY_ORCHESTRATOR] orchestrator has no agents"},
		{
			NewWarning(WarnMissingAgent, "agent not declared", "workflow", "w", "agent", "ghost"),
			"[MISSING_AGENT] agent not declared (agent=ghost, workflow=w)",
		},
		{NewWarning(WarnDeferredOption, "odd", "dangling"), "[DEFERRED_OPTION] odd"},
	}
	for _, tt := range tests {
		if got := tt.w.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
