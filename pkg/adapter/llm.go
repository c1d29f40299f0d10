// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/resilience"
)

// Agent properties read by LLMAdapter.
const (
	PropertyModel       = "model"
	PropertyTemperature = "temperature"
)

// BuildPrompt renders the instruction sent for an intent.
func BuildPrompt(intent, input, output string) string {
	if output == "" {
		output = "text"
	}
	return fmt.Sprintf("Execute %s with input: %s. Output format: %s.", intent, input, output)
}

// LLMAdapter turns intents into prompts for a Generator. Retries and the
// circuit breaker live here, never in the executor.
type LLMAdapter struct {
	gen          Generator
	retry        resilience.RetryConfig
	breaker      *resilience.CircuitBreaker
	defaultModel string
	logger       *slog.Logger
}

// LLMOption configures an LLMAdapter.
type LLMOption func(*LLMAdapter)

// WithRetry sets the retry policy.
func WithRetry(rc resilience.RetryConfig) LLMOption {
	return func(a *LLMAdapter) { a.retry = rc }
}

// WithCircuitBreaker guards generator calls with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) LLMOption {
	return func(a *LLMAdapter) { a.breaker = cb }
}

// WithDefaultModel sets the model used by agents without a model property.
func WithDefaultModel(model string) LLMOption {
	return func(a *LLMAdapter) { a.defaultModel = model }
}

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) LLMOption {
	return func(a *LLMAdapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewLLMAdapter returns an adapter driving gen.
func NewLLMAdapter(gen Generator, opts ...LLMOption) *LLMAdapter {
	a := &LLMAdapter{
		gen:    gen,
		retry:  resilience.DefaultRetryConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute builds the prompt for req and returns the generated text. Failures
// are GENERATION_ERRORs.
func (a *LLMAdapter) Execute(ctx context.Context, req Request) (string, error) {
	if req.Agent == nil {
		return "", synerrors.New(synerrors.CodeInvalidInput, "request has no agent", nil)
	}
	model := req.Agent.Property(PropertyModel)
	if model == "" {
		model = a.defaultModel
	}
	opts := map[string]any{}
	if t := req.Agent.Property(PropertyTemperature); t != "" {
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			opts[PropertyTemperature] = f
		}
	}
	prompt := BuildPrompt(req.Intent, req.Input, req.Output)

	rc := a.retry.WithOnRetry(func(attempt int, err error) {
		a.logger.Warn("adapter.llm.retry",
			"agent", req.Agent.ID,
			"intent", req.Intent,
			"attempt", attempt,
			"error", err)
	})
	out, err := resilience.Retry(ctx, rc, func() (string, error) {
		return a.generate(ctx, prompt, model, opts)
	})
	if err != nil {
		if synerrors.CodeOf(err) == synerrors.CodeGeneration {
			return "", err
		}
		return "", synerrors.New(synerrors.CodeGeneration, "generation failed", err).
			WithContext("agent", req.Agent.ID).
			WithContext("intent", req.Intent).
			WithContext("model", model)
	}
	return out, nil
}

func (a *LLMAdapter) generate(ctx context.Context, prompt, model string, opts map[string]any) (string, error) {
	if a.breaker == nil {
		return a.gen.Generate(ctx, prompt, model, opts)
	}
	var out string
	err := a.breaker.Call(ctx, func() error {
		var err error
		out, err = a.gen.Generate(ctx, prompt, model, opts)
		return err
	})
	return out, err
}
