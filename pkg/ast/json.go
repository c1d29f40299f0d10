// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package ast

import (
	"encoding/json"
	"fmt"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

// PropertyValue is a string or a list of strings.
type PropertyValue struct {
	Value  string
	Values []string
}

// Scalar builds a string property value.
func Scalar(s string) PropertyValue { return PropertyValue{Value: s} }

// List builds a list property value.
func List(values ...string) PropertyValue {
	if values == nil {
		values = []string{}
	}
	return PropertyValue{Values: values}
}

// IsList reports whether the value is a list.
func (v PropertyValue) IsList() bool { return v.Values != nil }

// String returns the scalar value.
func (v PropertyValue) String() string { return v.Value }

// List returns the list items.
func (v PropertyValue) List() []string { return v.Values }

func (v PropertyValue) MarshalJSON() ([]byte, error) {
	if v.IsList() {
		return json.Marshal(v.Values)
	}
	return json.Marshal(v.Value)
}

func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Scalar(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return synerrors.New(synerrors.CodeSchema, "property value must be a string or a list of strings", err)
	}
	*v = List(list...)
	return nil
}

type typeTag struct {
	Type string `json:"type"`
}

func (p Program) MarshalJSON() ([]byte, error) {
	decls := p.Declarations
	if decls == nil {
		decls = []Declaration{}
	}
	return json.Marshal(struct {
		Type         string        `json:"type"`
		Declarations []Declaration `json:"declarations"`
	}{TypeProgram, decls})
}

func (p *Program) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type         string            `json:"type"`
		Declarations []json.RawMessage `json:"declarations"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return synerrors.New(synerrors.CodeSchema, "invalid program document", err)
	}
	if aux.Type != "" && aux.Type != TypeProgram {
		return synerrors.Newf(synerrors.CodeSchema, "root must be a %s, got %q", TypeProgram, aux.Type)
	}
	p.Declarations = make([]Declaration, 0, len(aux.Declarations))
	for i, raw := range aux.Declarations {
		d, err := decodeDeclaration(raw)
		if err != nil {
			return fmt.Errorf("declaration %d: %w", i, err)
		}
		p.Declarations = append(p.Declarations, d)
	}
	return nil
}

func decodeDeclaration(raw json.RawMessage) (Declaration, error) {
	var tag typeTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, synerrors.New(synerrors.CodeSchema, "invalid declaration", err)
	}
	switch tag.Type {
	case TypeOrchestrator:
		var o Orchestrator
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
		return &o, nil
	case TypeRun:
		type alias Run
		var r alias
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, synerrors.New(synerrors.CodeSchema, "invalid run declaration", err)
		}
		run := Run(r)
		return &run, nil
	default:
		return nil, synerrors.Newf(synerrors.CodeSchema, "unknown declaration type %q", tag.Type)
	}
}

func (o Orchestrator) MarshalJSON() ([]byte, error) {
	type alias Orchestrator
	if o.Blocks == nil {
		o.Blocks = []Block{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeOrchestrator, alias(o)})
}

func (o *Orchestrator) UnmarshalJSON(data []byte) error {
	var aux struct {
		UID    string            `json:"uid"`
		Name   string            `json:"name"`
		Blocks []json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return synerrors.New(synerrors.CodeSchema, "invalid orchestrator", err)
	}
	o.UID = aux.UID
	o.Name = aux.Name
	o.Blocks = make([]Block, 0, len(aux.Blocks))
	for _, raw := range aux.Blocks {
		b, err := decodeBlock(raw)
		if err != nil {
			return synerrors.AsSynaiError(err).WithContext("orchestrator", aux.Name)
		}
		o.Blocks = append(o.Blocks, b)
	}
	return nil
}

func decodeBlock(raw json.RawMessage) (Block, error) {
	var tag typeTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, synerrors.New(synerrors.CodeSchema, "invalid block", err)
	}
	switch tag.Type {
	case TypeAgentsBlock:
		type alias AgentsBlock
		var ab alias
		if err := json.Unmarshal(raw, &ab); err != nil {
			return nil, synerrors.New(synerrors.CodeSchema, "invalid agents block", err)
		}
		block := AgentsBlock(ab)
		return &block, nil
	case TypeWorkflow:
		var wf Workflow
		if err := json.Unmarshal(raw, &wf); err != nil {
			return nil, err
		}
		return &wf, nil
	default:
		return nil, synerrors.Newf(synerrors.CodeSchema, "unknown block type %q", tag.Type)
	}
}

func (r Run) MarshalJSON() ([]byte, error) {
	type alias Run
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeRun, alias(r)})
}

func (b AgentsBlock) MarshalJSON() ([]byte, error) {
	type alias AgentsBlock
	if b.Agents == nil {
		b.Agents = []*Agent{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeAgentsBlock, alias(b)})
}

func (w Workflow) MarshalJSON() ([]byte, error) {
	type alias Workflow
	if w.Statements == nil {
		w.Statements = []Statement{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeWorkflow, alias(w)})
}

func (w *Workflow) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name       string            `json:"name"`
		Statements []json.RawMessage `json:"statements"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return synerrors.New(synerrors.CodeSchema, "invalid workflow", err)
	}
	w.Name = aux.Name
	w.Statements = make([]Statement, 0, len(aux.Statements))
	for _, raw := range aux.Statements {
		s, err := decodeStatement(raw)
		if err != nil {
			return synerrors.AsSynaiError(err).WithContext("workflow", aux.Name)
		}
		w.Statements = append(w.Statements, s)
	}
	return nil
}

// decodeStatement keeps unrecognised statement types as UnknownStatement so
// the executor can surface them as warnings.
func decodeStatement(raw json.RawMessage) (Statement, error) {
	var tag typeTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, synerrors.New(synerrors.CodeSchema, "invalid statement", err)
	}
	switch tag.Type {
	case TypeIntent:
		type alias Intent
		var i alias
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, synerrors.New(synerrors.CodeSchema, "invalid intent", err)
		}
		intent := Intent(i)
		return &intent, nil
	case TypeConnect:
		type alias Connect
		var c alias
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, synerrors.New(synerrors.CodeSchema, "invalid connect", err)
		}
		conn := Connect(c)
		return &conn, nil
	default:
		return &UnknownStatement{Type: tag.Type, Raw: append([]byte(nil), raw...)}, nil
	}
}

func (i Intent) MarshalJSON() ([]byte, error) {
	type alias Intent
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeIntent, alias(i)})
}

func (c Connect) MarshalJSON() ([]byte, error) {
	type alias Connect
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeConnect, alias(c)})
}

func (u UnknownStatement) MarshalJSON() ([]byte, error) {
	if len(u.Raw) > 0 {
		return u.Raw, nil
	}
	return json.Marshal(typeTag{Type: u.Type})
}

// ParseJSON decodes a program from its JSON form.
func ParseJSON(data []byte) (*Program, error) {
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		if se := synerrors.CodeOf(err); se != "" {
			return nil, err
		}
		return nil, synerrors.New(synerrors.CodeSchema, "invalid program document", err)
	}
	return &p, nil
}

// MarshalJSON encodes a program as indented JSON.
func MarshalJSON(p *Program) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
