// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package events defines the execution events an executor run emits and
// the emitters that receive them.
package events

import (
	"context"
	"sync"
	"time"
)

// Type identifies an execution event.
type Type string

const (
	RunStarted       Type = "run.started"
	RunCompleted     Type = "run.completed"
	RunCancelled     Type = "run.cancelled"
	IntentStarted    Type = "intent.started"
	IntentCompleted  Type = "intent.completed"
	IntentFailed     Type = "intent.failed"
	ConnectPropagate Type = "connect.propagated"
	WarningRaised    Type = "warning"
)

// Event is one execution event.
type Event struct {
	Type         Type           `json:"type"`
	RunID        string         `json:"run_id"`
	Orchestrator string         `json:"orchestrator,omitempty"`
	Workflow     string         `json:"workflow,omitempty"`
	Agent        string         `json:"agent,omitempty"`
	Intent       string         `json:"intent,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// New builds an event stamped with the current UTC time.
func New(typ Type, runID string, payload map[string]any) Event {
	return Event{Type: typ, RunID: runID, Timestamp: time.Now().UTC(), Payload: payload}
}

// Emitter receives events. Emit must not block the run for long; slow
// sinks should buffer.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Noop discards events.
type Noop struct{}

func (Noop) Emit(context.Context, Event) {}

// Multi fans an event out to several emitters in order.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, e Event) {
	for _, em := range m {
		if em != nil {
			em.Emit(ctx, e)
		}
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Has reports whether an event of typ was recorded.
func (r *Recorder) Has(typ Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type == typ {
			return true
		}
	}
	return false
}
