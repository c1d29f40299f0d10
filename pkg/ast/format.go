// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package ast

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Format renders a program back to canonical source text. Property keys are
// sorted and options follow a fixed order, so parsing the output and
// formatting again yields the same text.
//
// Unknown statements have no source form and are rendered as comments.
func Format(p *Program) string {
	var f formatter
	for i, d := range p.Declarations {
		if i > 0 {
			f.line(0, "")
		}
		switch d := d.(type) {
		case *Orchestrator:
			f.orchestrator(d)
		case *Run:
			f.line(0, fmt.Sprintf("run %s with workflow %s", quote(d.Orchestrator), quote(d.Workflow)))
		}
	}
	return f.sb.String()
}

type formatter struct {
	sb strings.Builder
}

func (f *formatter) line(depth int, s string) {
	if s != "" {
		f.sb.WriteString(strings.Repeat("  ", depth))
		f.sb.WriteString(s)
	}
	f.sb.WriteByte('\n')
}

func (f *formatter) orchestrator(o *Orchestrator) {
	f.line(0, fmt.Sprintf("orchestrator %s {", quote(o.Name)))
	for _, b := range o.Blocks {
		switch b := b.(type) {
		case *AgentsBlock:
			f.agents(b)
		case *Workflow:
			f.workflow(b)
		}
	}
	f.line(0, "}")
}

func (f *formatter) agents(b *AgentsBlock) {
	f.line(1, "agents {")
	for _, a := range b.Agents {
		f.line(2, fmt.Sprintf("%s: %s {", a.ID, a.AgentType))
		keys := make([]string, 0, len(a.Properties))
		for k := range a.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			f.line(3, fmt.Sprintf("%s: %s", k, formatValue(a.Properties[k])))
		}
		f.line(2, "}")
	}
	f.line(1, "}")
}

func formatValue(v PropertyValue) string {
	if !v.IsList() {
		return quote(v.Value)
	}
	items := make([]string, len(v.Values))
	for i, s := range v.Values {
		items[i] = quote(s)
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func (f *formatter) workflow(w *Workflow) {
	f.line(1, fmt.Sprintf("workflow %s {", quote(w.Name)))
	for _, s := range w.Statements {
		switch s := s.(type) {
		case *Intent:
			f.line(2, FormatIntent(s))
		case *Connect:
			f.connect(s)
		default:
			f.line(2, "# unknown statement "+s.StatementType())
		}
	}
	f.line(1, "}")
}

// FormatIntent renders a single intent statement.
func FormatIntent(i *Intent) string {
	kind := i.Kind
	if kind == "" {
		kind = KindStep
	}
	args := []string{quote(i.Name)}
	if i.Input != nil {
		args = append(args, "input: "+quote(*i.Input))
	}
	if i.Output != nil {
		args = append(args, "output: "+quote(*i.Output))
	}
	return fmt.Sprintf("%s: %s.intent(%s)", kind, i.Agent, strings.Join(args, ", "))
}

func (f *formatter) connect(c *Connect) {
	head := fmt.Sprintf("connect %s.output -> %s.input {", c.From, c.To)
	if c.Options.IsZero() {
		f.line(2, head+" }")
		return
	}
	f.line(2, head)
	o := c.Options
	if o.Async {
		f.line(3, "async: true")
	}
	if o.Timeout > 0 {
		f.line(3, fmt.Sprintf("timeout: %ds", o.Timeout))
	}
	if o.Transform != "" {
		f.line(3, "transform: "+quote(o.Transform))
	}
	if o.Retry > 0 {
		f.line(3, "retry: "+strconv.Itoa(o.Retry))
	}
	if o.Filter != "" {
		f.line(3, "filter: "+quote(o.Filter))
	}
	f.line(2, "}")
}

// Literals carry no escapes; a string cannot contain a double quote.
func quote(s string) string {
	return `"` + s + `"`
}
