// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jllopis/synai/pkg/ast"
	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/llm"
	"github.com/jllopis/synai/pkg/resilience"
	"github.com/jllopis/synai/pkg/tools"
)

func agent(id, typ string, props map[string]ast.PropertyValue) *ast.Agent {
	return &ast.Agent{ID: id, AgentType: typ, Properties: props}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	echo := Func(func(_ context.Context, req Request) (string, error) { return req.Input, nil })
	if err := r.Register("LLM", echo); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("llm", echo); !synerrors.Is(err, synerrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for a duplicate type, got %v", err)
	}
	if err := r.Register(" ", echo); err == nil {
		t.Fatal("expected an error for an empty type")
	}
	if _, ok := r.Lookup("Llm"); !ok {
		t.Fatal("lookup must be case-insensitive")
	}
	if _, ok := r.Lookup("TOOL"); ok {
		t.Fatal("unexpected TOOL adapter")
	}
	if got := r.Types(); !cmp.Equal(got, []string{"llm"}) || r.Len() != 1 {
		t.Fatalf("Types = %v, Len = %d", got, r.Len())
	}

	var nilReg *Registry
	if _, ok := nilReg.Lookup("LLM"); ok || nilReg.Len() != 0 {
		t.Fatal("a nil registry has no adapters")
	}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		intent, input, output, want string
	}{
		{"summarize", "the text", "", "Execute summarize with input: the text. Output format: text."},
		{"draft", "topic", "markdown", "Execute draft with input: topic. Output format: markdown."},
	}
	for _, tt := range tests {
		if got := BuildPrompt(tt.intent, tt.input, tt.output); got != tt.want {
			t.Errorf("BuildPrompt = %q, want %q", got, tt.want)
		}
	}
}

func fastRetry() resilience.RetryConfig {
	return resilience.DefaultRetryConfig().WithInitialDelay(time.Millisecond)
}

func TestLLMAdapterRequest(t *testing.T) {
	provider := llm.NewScriptedMockProvider("a summary")
	a := NewLLMAdapter(NewChatGenerator(provider, WithSystemPrompt("be brief")),
		WithRetry(fastRetry()), WithDefaultModel("fallback"))

	out, err := a.Execute(context.Background(), Request{
		Agent: agent("writer", "LLM", map[string]ast.PropertyValue{
			"model":       ast.Scalar("llama3.1"),
			"temperature": ast.Scalar("0.2"),
		}),
		Intent: "summarize",
		Input:  "long text",
		Output: "summary",
	})
	if err != nil || out != "a summary" {
		t.Fatalf("Execute = %q, %v", out, err)
	}
	want := llm.ChatRequest{
		Model: "llama3.1",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be brief"},
			{Role: llm.RoleUser, Content: "Execute summarize with input: long text. Output format: summary."},
		},
		Temperature: 0.2,
	}
	if diff := cmp.Diff(want, provider.Requests[0]); diff != "" {
		t.Fatalf("request (-want +got):\n%s", diff)
	}

	provider.AddResponse("x")
	if _, err := a.Execute(context.Background(), Request{Agent: agent("b", "LLM", nil), Intent: "i"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := provider.Requests[1].Model; got != "fallback" {
		t.Fatalf("model = %q, want the default model", got)
	}
}

func TestLLMAdapterRetriesRecoverableErrors(t *testing.T) {
	provider := llm.NewScriptedMockProvider("finally")
	provider.Errs = []error{
		synerrors.New(synerrors.CodeGeneration, "503", nil).WithRecoverable(true),
	}
	a := NewLLMAdapter(NewChatGenerator(provider), WithRetry(fastRetry()))
	out, err := a.Execute(context.Background(), Request{Agent: agent("a", "LLM", nil), Intent: "go"})
	if err != nil || out != "finally" {
		t.Fatalf("Execute = %q, %v", out, err)
	}
	if provider.CallCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", provider.CallCount())
	}
}

func TestLLMAdapterFailure(t *testing.T) {
	provider := llm.NewScriptedMockProvider()
	provider.Errs = []error{errors.New("connection refused"), errors.New("connection refused")}
	a := NewLLMAdapter(NewChatGenerator(provider), WithRetry(fastRetry().WithMaxAttempts(2)))
	_, err := a.Execute(context.Background(), Request{Agent: agent("a", "LLM", nil), Intent: "go"})
	se := synerrors.AsSynaiError(err)
	if se.Code != synerrors.CodeGeneration || se.Context["agent"] != "a" || se.Context["intent"] != "go" {
		t.Fatalf("expected GENERATION_ERROR with context, got %v", err)
	}
	if provider.CallCount() != 2 {
		t.Fatalf("expected 2 attempts, got %d", provider.CallCount())
	}
}

func TestLLMAdapterCircuitBreaker(t *testing.T) {
	provider := llm.NewScriptedMockProvider("never")
	provider.Errs = []error{errors.New("down")}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	a := NewLLMAdapter(NewChatGenerator(provider), WithRetry(fastRetry().WithMaxAttempts(1)), WithCircuitBreaker(cb))

	req := Request{Agent: agent("a", "LLM", nil), Intent: "go"}
	if _, err := a.Execute(context.Background(), req); err == nil {
		t.Fatal("expected the first call to fail")
	}
	if _, err := a.Execute(context.Background(), req); !synerrors.Is(err, synerrors.CodeGeneration) {
		t.Fatalf("expected an open-circuit GENERATION_ERROR, got %v", err)
	}
	if provider.CallCount() != 1 {
		t.Fatalf("an open circuit must not reach the provider, got %d calls", provider.CallCount())
	}
}

type fixedEmbedder []float32

func (f fixedEmbedder) Embed(context.Context, string) ([]float32, error) { return f, nil }

func TestEmbed(t *testing.T) {
	plain := NewChatGenerator(llm.NewScriptedMockProvider())
	if _, err := Embed(context.Background(), plain, "x"); !errors.Is(err, ErrEmbeddingUnsupported) {
		t.Fatalf("expected ErrEmbeddingUnsupported, got %v", err)
	}
	gen := NewChatGenerator(llm.NewScriptedMockProvider(), WithEmbedder(fixedEmbedder{1, 2}))
	v, err := Embed(context.Background(), gen, "x")
	if err != nil || !cmp.Equal(v, []float32{1, 2}) {
		t.Fatalf("Embed = %v, %v", v, err)
	}
}

func TestToolAdapter(t *testing.T) {
	reg, _ := tools.NewRegistry(
		tools.NewFunc("search", func(_ context.Context, in string) (string, error) { return "results for " + in, nil }),
		tools.NewFunc("lookup", func(_ context.Context, in string) (string, error) { return "entry " + in, nil }),
	)
	a := NewToolAdapter(reg)
	tests := []struct {
		name  string
		agent *ast.Agent
		want  string
	}{
		{"tool property", agent("t", "TOOL", map[string]ast.PropertyValue{"tool": ast.Scalar("search")}), "results for q"},
		{"intent name", agent("t", "TOOL", nil), "entry q"},
		{"unknown tool", agent("t", "TOOL", map[string]ast.PropertyValue{"tool": ast.Scalar("calc")}), `tool "calc" not found`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Execute(context.Background(), Request{Agent: tt.agent, Intent: "lookup", Input: "q"})
			if err != nil || got != tt.want {
				t.Fatalf("Execute = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}
