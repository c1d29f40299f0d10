// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package adapter defines how the executor hands an intent to the code that
// performs it, and the registry that selects that code by agent type.
package adapter

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/jllopis/synai/pkg/ast"
	synerrors "github.com/jllopis/synai/pkg/errors"
)

// Request is one intent invocation.
type Request struct {
	Agent  *ast.Agent
	Intent string
	Input  string
	// Output is the declared output binding, used as a format hint. Empty
	// when the intent declares none.
	Output string
}

// Adapter performs intents for one agent type.
type Adapter interface {
	Execute(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to Adapter.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Execute(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// Generator is the text generation capability an LLM adapter drives.
type Generator interface {
	Generate(ctx context.Context, prompt, model string, opts map[string]any) (string, error)
}

// Embedder is the optional embedding capability.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrEmbeddingUnsupported is returned by generators without an embedder.
var ErrEmbeddingUnsupported = errors.New("embedding unsupported")

// Embed asks g for an embedding of text when g supports it.
func Embed(ctx context.Context, g Generator, text string) ([]float32, error) {
	e, ok := g.(Embedder)
	if !ok {
		return nil, ErrEmbeddingUnsupported
	}
	return e.Embed(ctx, text)
}

// Registry maps agent types to adapters. Types are matched
// case-insensitively. Entries are added during setup and never removed, so
// the registry is safe to read from concurrent runs.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

// Register binds agentType to a. A type can be registered once.
func (r *Registry) Register(agentType string, a Adapter) error {
	key := strings.ToLower(strings.TrimSpace(agentType))
	if key == "" || a == nil {
		return synerrors.New(synerrors.CodeInvalidInput, "agent type and adapter are required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.adapters[key]; dup {
		return synerrors.Newf(synerrors.CodeInvalidInput, "adapter for %q already registered", agentType)
	}
	r.adapters[key] = a
	return nil
}

// Lookup returns the adapter bound to agentType. A nil registry has none.
func (r *Registry) Lookup(agentType string) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[strings.ToLower(agentType)]
	return a, ok
}

// Types returns the registered agent types in lower case, sorted.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
