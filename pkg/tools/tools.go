// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools implements the named tool contract used by TOOL agents: a
// process-wide registry of callables taking and returning text.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

// Tool is a named callable.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, input string) (string, error)
}

// Func adapts a plain function to Tool.
type Func struct {
	name string
	fn   func(ctx context.Context, input string) (string, error)
}

// NewFunc returns a Tool named name that calls fn.
func NewFunc(name string, fn func(ctx context.Context, input string) (string, error)) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Invoke(ctx context.Context, input string) (string, error) {
	return f.fn(ctx, input)
}

// Registry holds tools by name. Names are matched case-insensitively.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty registry, optionally seeded with tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t. Registering a name twice is an error.
func (r *Registry) Register(t Tool) error {
	if t == nil || strings.TrimSpace(t.Name()) == "" {
		return synerrors.New(synerrors.CodeInvalidInput, "tool name is required", nil)
	}
	key := strings.ToLower(t.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[key]; dup {
		return synerrors.Newf(synerrors.CodeInvalidInput, "tool %q already registered", t.Name())
	}
	r.tools[key] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[strings.ToLower(name)]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Name())
	}
	sort.Strings(out)
	return out
}

// Invoke calls the tool registered under name. An unknown name is not an
// error: the returned text says so. Failures of the tool itself are
// returned as TOOL_ERROR.
func (r *Registry) Invoke(ctx context.Context, name, input string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return NotFoundMessage(name), nil
	}
	out, err := t.Invoke(ctx, input)
	if err != nil {
		if synerrors.CodeOf(err) == synerrors.CodeTool {
			return "", err
		}
		return "", synerrors.New(synerrors.CodeTool, "tool invocation failed", err).WithContext("tool", name)
	}
	return out, nil
}

// NotFoundMessage is the text returned for an unregistered tool.
func NotFoundMessage(name string) string {
	return fmt.Sprintf("tool %q not found", name)
}
