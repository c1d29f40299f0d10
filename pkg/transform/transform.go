// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package transform holds the named value transforms that a connect
// statement can apply to the value it propagates.
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

// Func rewrites a propagated value.
type Func func(ctx context.Context, value string) (string, error)

// Builtins returns the transforms available without any configuration.
func Builtins() map[string]Func {
	return map[string]Func{
		"upper": func(_ context.Context, v string) (string, error) { return strings.ToUpper(v), nil },
		"lower": func(_ context.Context, v string) (string, error) { return strings.ToLower(v), nil },
		"trim":  func(_ context.Context, v string) (string, error) { return strings.TrimSpace(v), nil },
		"json":  toJSON,
	}
}

// toJSON compacts a value that already is JSON and quotes anything else.
func toJSON(_ context.Context, v string) (string, error) {
	if json.Valid([]byte(v)) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(v)); err == nil {
			return buf.String(), nil
		}
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Registry resolves transform names. Names are case-insensitive. When a Lua
// directory is configured, an unknown name is looked up as <dir>/<name>.lua.
type Registry struct {
	mu     sync.RWMutex
	funcs  map[string]Func
	luaDir string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLuaDir enables script transforms loaded from dir.
func WithLuaDir(dir string) Option {
	return func(r *Registry) { r.luaDir = dir }
}

// NewRegistry returns a registry holding the built-in transforms.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{funcs: map[string]Func{}}
	for name, fn := range Builtins() {
		r.funcs[name] = fn
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a transform.
func (r *Registry) Register(name string, fn Func) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return synerrors.New(synerrors.CodeInvalidInput, "transform name and function are required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[strings.ToLower(name)] = fn
	return nil
}

// Lookup returns the transform called name. A script that exists but does
// not compile is reported as an error; a missing one as not found.
func (r *Registry) Lookup(name string) (Func, bool, error) {
	key := strings.ToLower(name)
	r.mu.RLock()
	fn, ok := r.funcs[key]
	r.mu.RUnlock()
	if ok {
		return fn, true, nil
	}
	if r.luaDir == "" || strings.ContainsAny(name, `/\`) {
		return nil, false, nil
	}

	path := filepath.Join(r.luaDir, name+".lua")
	if _, err := os.Stat(path); err != nil {
		return nil, false, nil
	}
	lt, err := LoadLua(path)
	if err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	r.funcs[key] = lt.Apply
	r.mu.Unlock()
	return lt.Apply, true, nil
}

// Apply runs the transform called name on value.
func (r *Registry) Apply(ctx context.Context, name, value string) (string, bool, error) {
	fn, ok, err := r.Lookup(name)
	if err != nil || !ok {
		return value, ok, err
	}
	out, err := fn(ctx, value)
	if err != nil {
		return value, true, err
	}
	return out, true, nil
}
