// Package linker compiles a validated program into a directed graph with
// explicit agent ports, intent nodes and connection edges, and persists the
// result as a linked artifact.
package linker

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jllopis/synai/pkg/ast"
	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/validator"
)

// FormatVersion is the version stamped on linked artifacts.
const FormatVersion = "1.0.0"

// Metadata describes a linked artifact.
type Metadata struct {
	ID         string              `json:"id"`
	Timestamp  time.Time           `json:"timestamp"`
	Source     string              `json:"source"`
	Nodes      int                 `json:"nodes"`
	Edges      int                 `json:"edges"`
	Version    string              `json:"version"`
	HasCycles  bool                `json:"has_cycles"`
	CycleNodes []string            `json:"cycle_nodes,omitempty"`
	Warnings   []synerrors.Warning `json:"warnings,omitempty"`
}

// Artifact is the unit persisted between the link and run steps.
type Artifact struct {
	ValidatedAST *ast.Program `json:"validated_ast"`
	Graph        *Graph       `json:"graph"`
	Metadata     Metadata     `json:"metadata"`
}

// Linker builds artifacts.
type Linker struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Linker.
type Option func(*Linker)

// WithLogger sets the linker logger.
func WithLogger(l *slog.Logger) Option {
	return func(lk *Linker) {
		if l != nil {
			lk.logger = l
		}
	}
}

// WithClock overrides the metadata timestamp source.
func WithClock(now func() time.Time) Option {
	return func(lk *Linker) {
		if now != nil {
			lk.now = now
		}
	}
}

// WithIDFunc overrides the metadata id generator.
func WithIDFunc(fn func() string) Option {
	return func(lk *Linker) {
		if fn != nil {
			lk.newID = fn
		}
	}
}

// New creates a Linker.
func New(opts ...Option) *Linker {
	lk := &Linker{
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(lk)
	}
	return lk
}

// Link runs New().Link(v, source).
func Link(v *validator.Validated, source string) (*Artifact, error) {
	return New().Link(v, source)
}

// Link builds the graph of every orchestrator in v. It fails with LINK_ERROR
// when the program has no orchestrator, no run directive, or a run directive
// naming a workflow its orchestrator does not declare. Cycles are recorded in
// the metadata, never rejected.
//
// Agent and intent node ids are not scoped by orchestrator: when two
// orchestrators declare the same agent id they share its nodes. Intent node
// ids are not scoped by workflow either: an agent.intent("x") repeated in
// the same or another workflow maps to one node, which keeps the bindings
// and kind of its first occurrence. Every Connect statement gets its own
// edge, so repeated connects between the same agents are parallel edges
// told apart by Edge.Key.
//
// Metadata.Source records the base name of source.
func (l *Linker) Link(v *validator.Validated, source string) (*Artifact, error) {
	if v == nil || v.Program == nil {
		return nil, synerrors.New(synerrors.CodeLink, "nothing to link", nil)
	}
	prog := v.Program
	orchestrators := prog.Orchestrators()
	if len(orchestrators) == 0 {
		return nil, synerrors.New(synerrors.CodeLink, "no Orchestrator declaration found", nil).
			WithContext("source", source)
	}
	runs := prog.Runs()
	if len(runs) == 0 {
		return nil, synerrors.New(synerrors.CodeLink, "no Run declaration found", nil).
			WithContext("source", source)
	}
	for _, r := range runs {
		o, ok := prog.Orchestrator(r.Orchestrator)
		if !ok {
			return nil, synerrors.Newf(synerrors.CodeLink, "run references undefined orchestrator %q", r.Orchestrator).
				WithContext("source", source)
		}
		if _, ok := o.Workflow(r.Workflow); !ok {
			return nil, synerrors.Newf(synerrors.CodeLink, "orchestrator %q has no workflow %q", r.Orchestrator, r.Workflow).
				WithContext("source", source).
				WithContext("orchestrator", r.Orchestrator).
				WithContext("workflow", r.Workflow)
		}
	}

	g := NewGraph()
	for _, o := range orchestrators {
		if err := linkOrchestrator(g, o); err != nil {
			return nil, synerrors.New(synerrors.CodeLink, "cannot link orchestrator", err).
				WithContext("orchestrator", o.Name)
		}
	}

	cycle := FindCycleNodes(g)
	name := filepath.Base(source)
	meta := Metadata{
		ID:         l.newID(),
		Timestamp:  l.now(),
		Source:     name,
		Nodes:      len(g.Nodes),
		Edges:      len(g.Edges),
		Version:    FormatVersion,
		HasCycles:  len(cycle) > 0,
		CycleNodes: cycle,
		Warnings:   v.Warnings,
	}
	g.Attrs["name"] = name
	g.Attrs["has_cycles"] = meta.HasCycles

	if meta.HasCycles {
		l.logger.Warn("linker.cycle.detected", "source", source, "nodes", cycle)
	}
	l.logger.Info("linker.link.done",
		"source", source,
		"nodes", meta.Nodes,
		"edges", meta.Edges,
		"has_cycles", meta.HasCycles)

	return &Artifact{ValidatedAST: prog, Graph: g, Metadata: meta}, nil
}

func linkOrchestrator(g *Graph, o *ast.Orchestrator) error {
	for _, a := range o.Agents() {
		props := make(map[string]any, len(a.Properties))
		for k, v := range a.Properties {
			if v.IsList() {
				props[k] = append([]string(nil), v.List()...)
			} else {
				props[k] = v.String()
			}
		}
		g.AddNode(AgentNodeID(a.ID), map[string]any{
			"type":         NodeAgent,
			"agent":        a.ID,
			"agent_type":   a.AgentType,
			"orchestrator": o.Name,
			"properties":   props,
		})
		g.AddNode(InputPortID(a.ID), map[string]any{"type": NodePort, "agent": a.ID, "port": "input"})
		g.AddNode(OutputPortID(a.ID), map[string]any{"type": NodePort, "agent": a.ID, "port": "output"})
		if err := g.AddEdge(InputPortID(a.ID), AgentNodeID(a.ID), map[string]any{"type": EdgeFlow}); err != nil {
			return err
		}
		if err := g.AddEdge(AgentNodeID(a.ID), OutputPortID(a.ID), map[string]any{"type": EdgeFlow}); err != nil {
			return err
		}
	}

	for _, wf := range o.Workflows() {
		for _, s := range wf.Statements {
			switch s := s.(type) {
			case *ast.Intent:
				if err := linkIntent(g, wf, s); err != nil {
					return err
				}
			case *ast.Connect:
				attrs := connectAttrs(s.Options)
				attrs["type"] = EdgeConnect
				attrs["workflow"] = wf.Name
				if _, err := g.AddParallelEdge(OutputPortID(s.From), InputPortID(s.To), attrs); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func linkIntent(g *Graph, wf *ast.Workflow, in *ast.Intent) error {
	id := IntentNodeID(in.Agent, in.Name)
	attrs := map[string]any{
		"type":     NodeIntent,
		"agent":    in.Agent,
		"intent":   in.Name,
		"kind":     string(in.Kind),
		"workflow": wf.Name,
	}
	if in.Input != nil {
		attrs["input"] = *in.Input
	}
	if in.Output != nil {
		attrs["output"] = *in.Output
	}
	g.AddNode(id, attrs)
	if err := g.AddEdge(InputPortID(in.Agent), id, map[string]any{"type": EdgeIntent}); err != nil {
		return err
	}
	return g.AddEdge(id, OutputPortID(in.Agent), map[string]any{"type": EdgeIntent})
}

// connectAttrs copies the declared options without interpreting them.
func connectAttrs(o ast.ConnectOptions) map[string]any {
	attrs := map[string]any{}
	if o.Async {
		attrs["async"] = true
	}
	if o.Timeout != 0 {
		attrs["timeout"] = o.Timeout
	}
	if o.Transform != "" {
		attrs["transform"] = o.Transform
	}
	if o.Retry != 0 {
		attrs["retry"] = o.Retry
	}
	if o.Filter != "" {
		attrs["filter"] = o.Filter
	}
	return attrs
}

// RunDirective returns the run directive selected by name: an orchestrator
// name, or "" for the first directive of the program.
func (a *Artifact) RunDirective(orchestrator string) (*ast.Run, error) {
	if a == nil || a.ValidatedAST == nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "artifact has no validated AST", nil)
	}
	runs := a.ValidatedAST.Runs()
	if len(runs) == 0 {
		return nil, synerrors.New(synerrors.CodeLink, "no Run declaration found", nil)
	}
	if orchestrator == "" {
		return runs[0], nil
	}
	for _, r := range runs {
		if r.Orchestrator == orchestrator {
			return r, nil
		}
	}
	return nil, synerrors.Newf(synerrors.CodeReference, "no run directive for orchestrator %q", orchestrator)
}
