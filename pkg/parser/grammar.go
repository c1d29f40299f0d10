// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// synLexer tokenizes SynAI source. Whitespace and comments are elided by the
// parser; timeouts such as 5s lex as Int followed by Ident.
var synLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Arrow", Pattern: `->`},
	{Name: "Punct", Pattern: `[{}()\[\]:.,]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// The nodes below form the concrete parse tree. They never leave the package:
// build converts them into the ast types.

type programNode struct {
	Pos          lexer.Position
	Declarations []*declarationNode `@@+`
}

type declarationNode struct {
	Orchestrator *orchestratorNode `  @@`
	Run          *runNode          `| @@`
}

type orchestratorNode struct {
	Pos    lexer.Position
	Name   string       `"orchestrator" @String "{"`
	Blocks []*blockNode `@@+ "}"`
}

type blockNode struct {
	Agents   *agentsNode   `  @@`
	Workflow *workflowNode `| @@`
}

type agentsNode struct {
	Pos    lexer.Position
	Agents []*agentNode `"agents" "{" @@+ "}"`
}

type agentNode struct {
	Pos        lexer.Position
	ID         string          `@Ident ":"`
	Type       *typeNode       `@@ "{"`
	Properties []*propertyNode `@@* "}"`
}

type typeNode struct {
	Pos  lexer.Position
	Name string `@Ident`
}

type propertyNode struct {
	Pos   lexer.Position
	Key   string   `@Ident ":"`
	Value *string  `(  @String`
	List  []string ` | "[" @String ( "," @String )* "]" )`
}

type workflowNode struct {
	Pos        lexer.Position
	Name       string           `"workflow" @String "{"`
	Statements []*statementNode `@@+ "}"`
}

type statementNode struct {
	Intent  *labeledIntentNode `  @@`
	Connect *connectNode       `| @@`
}

type labeledIntentNode struct {
	Pos    lexer.Position
	Kind   string      `@("start" | "step" | "end") ":"`
	Intent *intentNode `@@`
}

type intentNode struct {
	Pos   lexer.Position
	Agent string           `@Ident "." "intent" "("`
	Name  string           `@String`
	Args  []*intentArgNode `( "," @@ )* ")"`
}

type intentArgNode struct {
	Pos   lexer.Position
	Key   string `@("input" | "output") ":"`
	Value string `@String`
}

type connectNode struct {
	Pos     lexer.Position
	From    string        `"connect" @Ident "." "output" "->"`
	To      string        `@Ident "." "input" "{"`
	Options []*optionNode `@@* "}"`
}

type optionNode struct {
	Pos       lexer.Position
	Async     *string `  "async" ":" @("true" | "false")`
	Timeout   *string `| "timeout" ":" @Int "s"`
	Transform *string `| "transform" ":" @(String | Ident)`
	Retry     *string `| "retry" ":" @Int`
	Filter    *string `| "filter" ":" @String`
}

type runNode struct {
	Pos          lexer.Position
	Orchestrator string `"run" @String "with" "workflow"`
	Workflow     string `@String`
}
