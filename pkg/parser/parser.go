// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package parser turns SynAI source text into the canonical AST.
//
// A Parser is an explicitly constructed, stateless value: it can be shared
// between goroutines and every Parse call is independent.
package parser

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/google/uuid"

	"github.com/jllopis/synai/pkg/ast"
	synerrors "github.com/jllopis/synai/pkg/errors"
)

// Parser parses SynAI programs.
type Parser struct {
	grammar *participle.Parser[programNode]
	newUID  func() string
}

// Option configures a Parser.
type Option func(*Parser)

// WithUIDFunc overrides the generator of declaration ids.
func WithUIDFunc(fn func() string) Option {
	return func(p *Parser) {
		if fn != nil {
			p.newUID = fn
		}
	}
}

// New builds a parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		grammar: participle.MustBuild[programNode](
			participle.Lexer(synLexer),
			participle.Elide("Comment", "Whitespace"),
			participle.UseLookahead(2),
		),
		newUID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses src. filename is only used in error messages.
func (p *Parser) Parse(filename, src string) (*ast.Program, error) {
	tree, err := p.grammar.ParseString(filename, src)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			pos := perr.Position()
			return nil, newSyntaxError(filename, src, pos.Line, pos.Column, perr.Message())
		}
		return nil, newSyntaxError(filename, src, 0, 0, err.Error())
	}
	b := builder{filename: filename, src: src, newUID: p.newUID}
	return b.program(tree)
}

// ParseFile reads and parses the file at path.
func (p *Parser) ParseFile(path string) (*ast.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, synerrors.New(synerrors.CodeNotFound, "cannot read source file", err).
			WithContext("file", path)
	}
	return p.Parse(path, string(data))
}

// Parse parses src with a default parser.
func Parse(src string) (*ast.Program, error) {
	return New().Parse("", src)
}

// builder converts the concrete parse tree into the AST, applying the checks
// the grammar alone cannot express.
type builder struct {
	filename string
	src      string
	newUID   func() string
}

func (b *builder) errorf(pos lexer.Position, format string, args ...any) error {
	return newSyntaxError(b.filename, b.src, pos.Line, pos.Column, fmt.Sprintf(format, args...))
}

func (b *builder) program(n *programNode) (*ast.Program, error) {
	prog := &ast.Program{Declarations: make([]ast.Declaration, 0, len(n.Declarations))}
	for _, d := range n.Declarations {
		switch {
		case d.Orchestrator != nil:
			o, err := b.orchestrator(d.Orchestrator)
			if err != nil {
				return nil, err
			}
			prog.Declarations = append(prog.Declarations, o)
		case d.Run != nil:
			prog.Declarations = append(prog.Declarations, &ast.Run{
				UID:          b.newUID(),
				Orchestrator: unquote(d.Run.Orchestrator),
				Workflow:     unquote(d.Run.Workflow),
			})
		}
	}
	return prog, nil
}

func (b *builder) orchestrator(n *orchestratorNode) (*ast.Orchestrator, error) {
	o := &ast.Orchestrator{
		UID:    b.newUID(),
		Name:   unquote(n.Name),
		Blocks: make([]ast.Block, 0, len(n.Blocks)),
	}
	for _, blk := range n.Blocks {
		switch {
		case blk.Agents != nil:
			ab, err := b.agents(blk.Agents)
			if err != nil {
				return nil, err
			}
			o.Blocks = append(o.Blocks, ab)
		case blk.Workflow != nil:
			wf, err := b.workflow(blk.Workflow)
			if err != nil {
				return nil, err
			}
			o.Blocks = append(o.Blocks, wf)
		}
	}
	return o, nil
}

func (b *builder) agents(n *agentsNode) (*ast.AgentsBlock, error) {
	ab := &ast.AgentsBlock{Agents: make([]*ast.Agent, 0, len(n.Agents))}
	for _, an := range n.Agents {
		if r := []rune(an.Type.Name); !unicode.IsUpper(r[0]) {
			return nil, b.errorf(an.Type.Pos, "agent type %q must start with an uppercase letter", an.Type.Name)
		}
		agent := &ast.Agent{
			ID:         an.ID,
			AgentType:  an.Type.Name,
			Properties: make(map[string]ast.PropertyValue, len(an.Properties)),
		}
		for _, prop := range an.Properties {
			if _, dup := agent.Properties[prop.Key]; dup {
				return nil, b.errorf(prop.Pos, "duplicate property %q on agent %q", prop.Key, an.ID)
			}
			if prop.Value != nil {
				agent.Properties[prop.Key] = ast.Scalar(unquote(*prop.Value))
				continue
			}
			items := make([]string, len(prop.List))
			for i, s := range prop.List {
				items[i] = unquote(s)
			}
			agent.Properties[prop.Key] = ast.List(items...)
		}
		ab.Agents = append(ab.Agents, agent)
	}
	return ab, nil
}

func (b *builder) workflow(n *workflowNode) (*ast.Workflow, error) {
	wf := &ast.Workflow{
		Name:       unquote(n.Name),
		Statements: make([]ast.Statement, 0, len(n.Statements)),
	}
	for _, st := range n.Statements {
		switch {
		case st.Intent != nil:
			in, err := b.intent(st.Intent)
			if err != nil {
				return nil, err
			}
			wf.Statements = append(wf.Statements, in)
		case st.Connect != nil:
			c, err := b.connect(st.Connect)
			if err != nil {
				return nil, err
			}
			wf.Statements = append(wf.Statements, c)
		}
	}
	return wf, nil
}

func (b *builder) intent(n *labeledIntentNode) (*ast.Intent, error) {
	in := &ast.Intent{
		Kind:  ast.IntentKind(n.Kind),
		Agent: n.Intent.Agent,
		Name:  unquote(n.Intent.Name),
	}
	for _, arg := range n.Intent.Args {
		v := unquote(arg.Value)
		switch arg.Key {
		case "input":
			if in.Input != nil {
				return nil, b.errorf(arg.Pos, "duplicate input argument")
			}
			if in.Output != nil {
				return nil, b.errorf(arg.Pos, "input must precede output")
			}
			in.Input = &v
		case "output":
			if in.Output != nil {
				return nil, b.errorf(arg.Pos, "duplicate output argument")
			}
			in.Output = &v
		}
	}
	return in, nil
}

func (b *builder) connect(n *connectNode) (*ast.Connect, error) {
	c := &ast.Connect{From: n.From, To: n.To}
	seen := make(map[string]bool, len(n.Options))
	for _, opt := range n.Options {
		var key string
		switch {
		case opt.Async != nil:
			key = "async"
			c.Options.Async = *opt.Async == "true"
		case opt.Timeout != nil:
			key = "timeout"
			secs, err := strconv.Atoi(*opt.Timeout)
			if err != nil {
				return nil, b.errorf(opt.Pos, "invalid timeout %q", *opt.Timeout)
			}
			c.Options.Timeout = secs
		case opt.Transform != nil:
			key = "transform"
			c.Options.Transform = unquote(*opt.Transform)
		case opt.Retry != nil:
			key = "retry"
			retry, err := strconv.Atoi(*opt.Retry)
			if err != nil {
				return nil, b.errorf(opt.Pos, "invalid retry count %q", *opt.Retry)
			}
			c.Options.Retry = retry
		case opt.Filter != nil:
			key = "filter"
			c.Options.Filter = unquote(*opt.Filter)
		}
		if seen[key] {
			return nil, b.errorf(opt.Pos, "duplicate connect option %q", key)
		}
		seen[key] = true
	}
	return c, nil
}

// unquote strips the surrounding double quotes. String literals have no
// escape sequences.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
