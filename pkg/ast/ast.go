// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package ast defines the canonical abstract syntax tree of a SynAI program.
//
// The tree is produced by the parser, checked by the validator and embedded
// verbatim in linked artifacts. Every node is JSON serializable; polymorphic
// positions (declarations, blocks, statements) carry a "type" discriminator.
package ast

import "strings"

// Node type discriminators used in the JSON form.
const (
	TypeProgram      = "Program"
	TypeOrchestrator = "Orchestrator"
	TypeRun          = "Run"
	TypeAgentsBlock  = "AgentsBlock"
	TypeWorkflow     = "Workflow"
	TypeIntent       = "Intent"
	TypeConnect      = "Connect"
)

// IntentKind is the documentary label of an intent statement.
// The kinds carry no ordering or cardinality semantics.
type IntentKind string

const (
	KindStart IntentKind = "start"
	KindStep  IntentKind = "step"
	KindEnd   IntentKind = "end"
)

// Valid reports whether k is one of the known intent kinds.
func (k IntentKind) Valid() bool {
	switch k {
	case KindStart, KindStep, KindEnd:
		return true
	}
	return false
}

// PropertyAgentType is the agent property that overrides the declared type tag.
const PropertyAgentType = "agent_type"

// Program is the root of a parsed source file.
type Program struct {
	Declarations []Declaration `json:"declarations"`
}

// Declaration is a top-level Orchestrator or Run.
type Declaration interface {
	DeclarationType() string
	// DeclarationUID returns the process-unique id assigned at build time.
	DeclarationUID() string
}

// Block is an AgentsBlock or a Workflow inside an Orchestrator.
type Block interface {
	BlockType() string
}

// Statement is an Intent, a Connect, or an UnknownStatement read from JSON.
type Statement interface {
	StatementType() string
}

// Orchestrator is a named container of agents and workflows.
type Orchestrator struct {
	UID    string  `json:"uid,omitempty"`
	Name   string  `json:"name"`
	Blocks []Block `json:"blocks"`
}

func (*Orchestrator) DeclarationType() string  { return TypeOrchestrator }
func (o *Orchestrator) DeclarationUID() string { return o.UID }

// Run selects the orchestrator and workflow to execute.
type Run struct {
	UID          string `json:"uid,omitempty"`
	Orchestrator string `json:"orchestrator"`
	Workflow     string `json:"workflow"`
}

func (*Run) DeclarationType() string  { return TypeRun }
func (r *Run) DeclarationUID() string { return r.UID }

// AgentsBlock groups agent declarations. Ids are unique per orchestrator.
type AgentsBlock struct {
	Agents []*Agent `json:"agents"`
}

func (*AgentsBlock) BlockType() string { return TypeAgentsBlock }

// Workflow is a named, ordered sequence of statements.
type Workflow struct {
	Name       string      `json:"name"`
	Statements []Statement `json:"statements"`
}

func (*Workflow) BlockType() string { return TypeWorkflow }

// Agent is a declared participant.
type Agent struct {
	ID         string                   `json:"id"`
	AgentType  string                   `json:"agent_type"`
	Properties map[string]PropertyValue `json:"properties"`
}

// EffectiveType returns the agent_type property when set, else the type tag.
func (a *Agent) EffectiveType() string {
	if v, ok := a.Properties[PropertyAgentType]; ok && !v.IsList() && v.String() != "" {
		return v.String()
	}
	return a.AgentType
}

// Property returns the scalar value of a property, or "" when absent.
// List values are joined with ",".
func (a *Agent) Property(name string) string {
	v, ok := a.Properties[name]
	if !ok {
		return ""
	}
	if v.IsList() {
		return strings.Join(v.List(), ",")
	}
	return v.String()
}

// Intent invokes an agent to perform a named task.
type Intent struct {
	Kind   IntentKind `json:"kind"`
	Agent  string     `json:"agent"`
	Name   string     `json:"name"`
	Input  *string    `json:"input,omitempty"`
	Output *string    `json:"output,omitempty"`
}

func (*Intent) StatementType() string { return TypeIntent }

// InputValue returns the declared input literal, or "".
func (i *Intent) InputValue() string {
	if i.Input == nil {
		return ""
	}
	return *i.Input
}

// OutputValue returns the declared output binding, or "".
func (i *Intent) OutputValue() string {
	if i.Output == nil {
		return ""
	}
	return *i.Output
}

// Connect routes the output port of one agent to the input port of another.
type Connect struct {
	From    string         `json:"from"`
	To      string         `json:"to"`
	Options ConnectOptions `json:"options"`
}

func (*Connect) StatementType() string { return TypeConnect }

// ConnectOptions are scheduling and routing hints. Timeout is in seconds.
type ConnectOptions struct {
	Async     bool   `json:"async,omitempty"`
	Timeout   int    `json:"timeout,omitempty"`
	Transform string `json:"transform,omitempty"`
	Retry     int    `json:"retry,omitempty"`
	Filter    string `json:"filter,omitempty"`
}

// IsZero reports whether no option was set.
func (o ConnectOptions) IsZero() bool {
	return o == ConnectOptions{}
}

// UnknownStatement preserves a statement whose type this version does not know.
type UnknownStatement struct {
	Type string `json:"-"`
	Raw  []byte `json:"-"`
}

func (u *UnknownStatement) StatementType() string { return u.Type }

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// Orchestrators returns the orchestrator declarations in order.
func (p *Program) Orchestrators() []*Orchestrator {
	var out []*Orchestrator
	for _, d := range p.Declarations {
		if o, ok := d.(*Orchestrator); ok {
			out = append(out, o)
		}
	}
	return out
}

// Runs returns the run directives in order.
func (p *Program) Runs() []*Run {
	var out []*Run
	for _, d := range p.Declarations {
		if r, ok := d.(*Run); ok {
			out = append(out, r)
		}
	}
	return out
}

// Orchestrator returns the first orchestrator with the given name.
func (p *Program) Orchestrator(name string) (*Orchestrator, bool) {
	for _, o := range p.Orchestrators() {
		if o.Name == name {
			return o, true
		}
	}
	return nil, false
}

// Agents returns the agents of all agents blocks in declaration order.
func (o *Orchestrator) Agents() []*Agent {
	var out []*Agent
	for _, b := range o.Blocks {
		if ab, ok := b.(*AgentsBlock); ok {
			out = append(out, ab.Agents...)
		}
	}
	return out
}

// Agent looks up an agent by id.
func (o *Orchestrator) Agent(id string) (*Agent, bool) {
	for _, a := range o.Agents() {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// Workflows returns the workflow blocks in declaration order.
func (o *Orchestrator) Workflows() []*Workflow {
	var out []*Workflow
	for _, b := range o.Blocks {
		if wf, ok := b.(*Workflow); ok {
			out = append(out, wf)
		}
	}
	return out
}

// Workflow looks up a workflow by name.
func (o *Orchestrator) Workflow(name string) (*Workflow, bool) {
	for _, wf := range o.Workflows() {
		if wf.Name == name {
			return wf, true
		}
	}
	return nil, false
}
