// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package ast

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

func sampleProgram() *Program {
	return &Program{Declarations: []Declaration{
		&Orchestrator{
			UID:  "o-1",
			Name: "demo",
			Blocks: []Block{
				&AgentsBlock{Agents: []*Agent{
					{ID: "a", AgentType: "LLM", Properties: map[string]PropertyValue{
						"model":        Scalar("x"),
						"capabilities": List("chat", "code"),
					}},
					{ID: "b", AgentType: "TOOL", Properties: map[string]PropertyValue{
						"agent_type": Scalar("llm"),
					}},
				}},
				&Workflow{Name: "w", Statements: []Statement{
					&Intent{Kind: KindStart, Agent: "a", Name: "go", Input: StringPtr("hi"), Output: StringPtr("plan")},
					&Connect{From: "a", To: "b", Options: ConnectOptions{Async: true, Timeout: 5, Transform: "upper"}},
					&Intent{Kind: KindEnd, Agent: "b", Name: "done"},
				}},
			},
		},
		&Run{UID: "r-1", Orchestrator: "demo", Workflow: "w"},
	}}
}

func TestProgramJSONShape(t *testing.T) {
	data, err := MarshalJSON(sampleProgram())
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["type"] != TypeProgram {
		t.Fatalf("expected root type Program, got %v", raw["type"])
	}
	decls := raw["declarations"].([]any)
	orch := decls[0].(map[string]any)
	if orch["type"] != TypeOrchestrator || orch["name"] != "demo" {
		t.Fatalf("unexpected orchestrator: %v", orch)
	}
	blocks := orch["blocks"].([]any)
	agents := blocks[0].(map[string]any)["agents"].([]any)
	props := agents[0].(map[string]any)["properties"].(map[string]any)
	if props["model"] != "x" {
		t.Fatalf("expected scalar property, got %v", props["model"])
	}
	if list, ok := props["capabilities"].([]any); !ok || len(list) != 2 {
		t.Fatalf("expected list property, got %v", props["capabilities"])
	}
	stmts := blocks[1].(map[string]any)["statements"].([]any)
	conn := stmts[1].(map[string]any)
	opts := conn["options"].(map[string]any)
	if opts["timeout"] != float64(5) || opts["async"] != true {
		t.Fatalf("unexpected options: %v", opts)
	}
	if _, ok := opts["retry"]; ok {
		t.Fatalf("unset options must be omitted: %v", opts)
	}
}

func TestProgramJSONDecode(t *testing.T) {
	want := sampleProgram()
	data, err := MarshalJSON(want)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	got, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decoded program mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownStatementIsPreserved(t *testing.T) {
	doc := `{"type":"Program","declarations":[{"type":"Orchestrator","name":"o","blocks":[
		{"type":"Workflow","name":"w","statements":[{"type":"Wait","seconds":3}]}]}]}`
	p, err := ParseJSON([]byte(doc))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	o, _ := p.Orchestrator("o")
	wf, ok := o.Workflow("w")
	if !ok {
		t.Fatal("workflow not found")
	}
	u, ok := wf.Statements[0].(*UnknownStatement)
	if !ok {
		t.Fatalf("expected UnknownStatement, got %T", wf.Statements[0])
	}
	if u.StatementType() != "Wait" {
		t.Fatalf("expected type Wait, got %s", u.StatementType())
	}
	out, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"seconds":3`) {
		t.Fatalf("raw statement not preserved: %s", out)
	}
}

func TestParseJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"wrong root", `{"type":"Orchestrator","declarations":[]}`},
		{"unknown declaration", `{"type":"Program","declarations":[{"type":"Import"}]}`},
		{"unknown block", `{"type":"Program","declarations":[{"type":"Orchestrator","name":"o","blocks":[{"type":"Tools"}]}]}`},
		{"bad property", `{"type":"Program","declarations":[{"type":"Orchestrator","name":"o","blocks":[
			{"type":"AgentsBlock","agents":[{"id":"a","agent_type":"LLM","properties":{"n":1}}]}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !synerrors.Is(err, synerrors.CodeSchema) {
				t.Fatalf("expected SCHEMA_ERROR, got %v", err)
			}
		})
	}
}

func TestLookups(t *testing.T) {
	p := sampleProgram()
	if len(p.Orchestrators()) != 1 || len(p.Runs()) != 1 {
		t.Fatalf("unexpected declaration split")
	}
	o, ok := p.Orchestrator("demo")
	if !ok {
		t.Fatal("orchestrator demo not found")
	}
	if _, ok := p.Orchestrator("missing"); ok {
		t.Fatal("unexpected orchestrator")
	}
	if a, ok := o.Agent("b"); !ok || a.AgentType != "TOOL" {
		t.Fatalf("agent b lookup failed")
	}
	if _, ok := o.Workflow("nope"); ok {
		t.Fatal("unexpected workflow")
	}
}

func TestAgentEffectiveType(t *testing.T) {
	p := sampleProgram()
	o, _ := p.Orchestrator("demo")
	a, _ := o.Agent("a")
	b, _ := o.Agent("b")
	if got := a.EffectiveType(); got != "LLM" {
		t.Errorf("a.EffectiveType() = %q, want LLM", got)
	}
	if got := b.EffectiveType(); got != "llm" {
		t.Errorf("b.EffectiveType() = %q, want llm (property override)", got)
	}
	if got := a.Property("capabilities"); got != "chat,code" {
		t.Errorf("a.Property(capabilities) = %q", got)
	}
}

func TestFormat(t *testing.T) {
	want := `orchestrator "demo" {
  agents {
    a: LLM {
      capabilities: ["chat", "code"]
      model: "x"
    }
    b: TOOL {
      agent_type: "llm"
    }
  }
  workflow "w" {
    start: a.intent("go", input: "hi", output: "plan")
    connect a.output -> b.input {
      async: true
      timeout: 5s
      transform: "upper"
    }
    end: b.intent("done")
  }
}

run "demo" with workflow "w"
`
	if got := Format(sampleProgram()); got != want {
		t.Fatalf("Format mismatch:\n%s", cmp.Diff(want, got))
	}
}
