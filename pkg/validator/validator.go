// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package validator checks a parsed program for schema conformance and
// resolvable references before it is linked.
//
// Dangling agent or orchestrator references are fatal. Conditions that do not
// prevent linking are reported as warnings on the Validated result.
package validator

import (
	"log/slog"

	"github.com/jllopis/synai/pkg/ast"
	synerrors "github.com/jllopis/synai/pkg/errors"
)

// Validated is a program that passed validation, with its warnings.
// The program is returned unchanged.
type Validated struct {
	Program  *ast.Program        `json:"program"`
	Warnings []synerrors.Warning `json:"warnings"`
}

// Rule is an additional check run after the built-in ones. It may append
// warnings to the report or return a fatal error.
type Rule func(prog *ast.Program, report *Validated) error

// Validator runs the built-in checks plus any registered rules.
type Validator struct {
	rules  []Rule
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithRule registers an extra rule.
func WithRule(r Rule) Option {
	return func(v *Validator) {
		if r != nil {
			v.rules = append(v.rules, r)
		}
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs New().Validate(prog).
func Validate(prog *ast.Program) (*Validated, error) {
	return New().Validate(prog)
}

// Validate checks prog. The first fatal problem is returned as a
// SCHEMA_ERROR or REFERENCE_ERROR.
func (v *Validator) Validate(prog *ast.Program) (*Validated, error) {
	if err := checkSchema(prog); err != nil {
		return nil, err
	}
	report := &Validated{Program: prog, Warnings: []synerrors.Warning{}}

	for _, o := range prog.Orchestrators() {
		if err := checkOrchestrator(o, report); err != nil {
			return nil, err
		}
	}
	for _, r := range prog.Runs() {
		if err := checkRun(prog, r, report); err != nil {
			return nil, err
		}
	}
	for _, rule := range v.rules {
		if err := rule(prog, report); err != nil {
			return nil, err
		}
	}

	for _, w := range report.Warnings {
		v.logger.Warn("validator.warning", "code", string(w.Code), "message", w.Message)
	}
	v.logger.Debug("validator.done",
		"declarations", len(prog.Declarations),
		"warnings", len(report.Warnings))
	return report, nil
}

func checkSchema(prog *ast.Program) error {
	if prog == nil {
		return synerrors.New(synerrors.CodeSchema, "program is nil", nil)
	}
	if len(prog.Declarations) == 0 {
		return synerrors.New(synerrors.CodeSchema, "program must contain at least one declaration", nil)
	}
	for i, d := range prog.Declarations {
		switch d := d.(type) {
		case *ast.Orchestrator:
			if d.Name == "" {
				return synerrors.New(synerrors.CodeSchema, "orchestrator name is empty", nil).
					WithContext("declaration", i)
			}
			for _, b := range d.Blocks {
				if err := checkBlockSchema(d, b); err != nil {
					return err
				}
			}
		case *ast.Run:
			if d.Orchestrator == "" || d.Workflow == "" {
				return synerrors.New(synerrors.CodeSchema, "run directive needs an orchestrator and a workflow", nil).
					WithContext("declaration", i)
			}
		case nil:
			return synerrors.New(synerrors.CodeSchema, "nil declaration", nil).WithContext("declaration", i)
		}
	}
	return nil
}

func checkBlockSchema(o *ast.Orchestrator, b ast.Block) error {
	switch b := b.(type) {
	case *ast.AgentsBlock:
		for _, a := range b.Agents {
			if a == nil || a.ID == "" || a.AgentType == "" {
				return synerrors.New(synerrors.CodeSchema, "agent needs an id and a type", nil).
					WithContext("orchestrator", o.Name)
			}
		}
	case *ast.Workflow:
		if b.Name == "" {
			return synerrors.New(synerrors.CodeSchema, "workflow name is empty", nil).
				WithContext("orchestrator", o.Name)
		}
		for _, s := range b.Statements {
			if in, ok := s.(*ast.Intent); ok && in.Kind != "" && !in.Kind.Valid() {
				return synerrors.Newf(synerrors.CodeSchema, "unknown intent kind %q", in.Kind).
					WithContext("orchestrator", o.Name).
					WithContext("workflow", b.Name)
			}
		}
	}
	return nil
}

func checkOrchestrator(o *ast.Orchestrator, report *Validated) error {
	agents := make(map[string]struct{})
	for _, a := range o.Agents() {
		if _, dup := agents[a.ID]; dup {
			return synerrors.Newf(synerrors.CodeSchema, "duplicate agent id %q", a.ID).
				WithContext("orchestrator", o.Name).
				WithContext("agent", a.ID)
		}
		agents[a.ID] = struct{}{}
	}
	if len(agents) == 0 {
		report.Warnings = append(report.Warnings, synerrors.NewWarning(
			synerrors.WarnEmptyOrchestrator,
			"orchestrator declares no agents",
			"orchestrator", o.Name))
	}

	for _, wf := range o.Workflows() {
		for _, s := range wf.Statements {
			switch s := s.(type) {
			case *ast.Intent:
				if _, ok := agents[s.Agent]; !ok {
					return synerrors.Newf(synerrors.CodeReference, "intent %q references undefined agent %q", s.Name, s.Agent).
						WithContext("orchestrator", o.Name).
						WithContext("workflow", wf.Name).
						WithContext("agent", s.Agent)
				}
			case *ast.Connect:
				for _, id := range []string{s.From, s.To} {
					if _, ok := agents[id]; !ok {
						return synerrors.Newf(synerrors.CodeReference, "connect %s -> %s references undefined agent %q", s.From, s.To, id).
							WithContext("orchestrator", o.Name).
							WithContext("workflow", wf.Name).
							WithContext("agent", id)
					}
				}
			}
		}
	}
	return nil
}

// checkRun requires the orchestrator to exist. A missing workflow is only a
// warning here; the linker rejects it.
func checkRun(prog *ast.Program, r *ast.Run, report *Validated) error {
	o, ok := prog.Orchestrator(r.Orchestrator)
	if !ok {
		return synerrors.Newf(synerrors.CodeReference, "run references undefined orchestrator %q", r.Orchestrator).
			WithContext("orchestrator", r.Orchestrator).
			WithContext("workflow", r.Workflow)
	}
	if _, ok := o.Workflow(r.Workflow); !ok {
		report.Warnings = append(report.Warnings, synerrors.NewWarning(
			synerrors.WarnMissingWorkflow,
			"run references a workflow the orchestrator does not declare",
			"orchestrator", r.Orchestrator,
			"workflow", r.Workflow))
	}
	return nil
}
