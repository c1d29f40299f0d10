// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

func echo(prefix string) *Func {
	return NewFunc(prefix, func(_ context.Context, in string) (string, error) {
		return prefix + ":" + in, nil
	})
}

func TestRegistryInvoke(t *testing.T) {
	r, err := NewRegistry(echo("search"), echo("Fetch"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := r.Names(); !cmp.Equal(got, []string{"Fetch", "search"}) {
		t.Fatalf("Names = %v", got)
	}

	tests := []struct {
		name string
		tool string
		want string
	}{
		{"exact", "search", "search:q"},
		{"case insensitive", "FETCH", "Fetch:q"},
		{"unknown", "calc", `tool "calc" not found`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Invoke(context.Background(), tt.tool, "q")
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Invoke = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r, _ := NewRegistry(echo("search"))
	if err := r.Register(echo("SEARCH")); !synerrors.Is(err, synerrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for a duplicate, got %v", err)
	}
	if err := r.Register(echo("")); err == nil {
		t.Fatal("expected an error for an empty name")
	}
}

func TestRegistryWrapsToolFailures(t *testing.T) {
	r, _ := NewRegistry(NewFunc("boom", func(context.Context, string) (string, error) {
		return "", errors.New("exploded")
	}))
	_, err := r.Invoke(context.Background(), "boom", "")
	se := synerrors.AsSynaiError(err)
	if se.Code != synerrors.CodeTool || se.Context["tool"] != "boom" {
		t.Fatalf("expected TOOL_ERROR with tool context, got %v", err)
	}
}

type stubCaller struct {
	name string
	args map[string]any
	res  *mcp.CallToolResult
	err  error
}

func (s *stubCaller) CallTool(_ context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.name, s.args = name, args
	return s.res, s.err
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}}}
}

func TestMCPToolArguments(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		input    string
		want     map[string]any
	}{
		{"single required field", []string{"url"}, "https://example.org", map[string]any{"url": "https://example.org"}},
		{"default field", nil, "hello", map[string]any{"input": "hello"}},
		{"json object", []string{"a", "b"}, `{"a": 1, "b": 2}`, map[string]any{"a": float64(1), "b": float64(2)}},
		{"empty", nil, "  ", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &stubCaller{res: textResult("ok")}
			tool, err := NewMCPTool(mcp.Tool{
				Name:        "t",
				InputSchema: mcp.ToolInputSchema{Type: "object", Required: tt.required},
			}, caller)
			if err != nil {
				t.Fatalf("NewMCPTool: %v", err)
			}
			out, err := tool.Invoke(context.Background(), tt.input)
			if err != nil || out != "ok" {
				t.Fatalf("Invoke = %q, %v", out, err)
			}
			if diff := cmp.Diff(tt.want, caller.args); diff != "" {
				t.Fatalf("args (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMCPToolErrors(t *testing.T) {
	def := mcp.Tool{Name: "sum", InputSchema: mcp.ToolInputSchema{Type: "object", Required: []string{"a", "b"}}}

	tool, _ := NewMCPTool(def, &stubCaller{res: textResult("3")})
	if _, err := tool.Invoke(context.Background(), `{"a": 1}`); !synerrors.Is(err, synerrors.CodeTool) {
		t.Fatalf("expected TOOL_ERROR for a missing argument, got %v", err)
	}

	failing := &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "bad input"}}}
	tool, _ = NewMCPTool(def, &stubCaller{res: failing})
	_, err := tool.Invoke(context.Background(), `{"a": 1, "b": 2}`)
	if !synerrors.Is(err, synerrors.CodeTool) || !strings.Contains(err.Error(), "bad input") {
		t.Fatalf("expected TOOL_ERROR carrying the tool message, got %v", err)
	}

	if _, err := NewMCPTool(mcp.Tool{}, &stubCaller{}); err == nil {
		t.Fatal("expected an error for an unnamed tool")
	}
}

func TestMCPClientInProcess(t *testing.T) {
	srv := server.NewMCPServer("test", "1.0.0")
	srv.AddTool(mcp.NewTool("upper",
		mcp.WithDescription("upper-cases its input"),
		mcp.WithString("text", mcp.Required()),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		text, _ := args["text"].(string)
		return textResult(strings.ToUpper(text)), nil
	})

	ctx := context.Background()
	inproc, err := client.NewInProcessClient(srv)
	if err != nil {
		t.Fatalf("NewInProcessClient: %v", err)
	}
	if err := Initialize(ctx, inproc); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	c := NewMCPClient(inproc)
	defer c.Close()

	r, _ := NewRegistry()
	if err := RegisterMCP(ctx, r, c); err != nil {
		t.Fatalf("RegisterMCP: %v", err)
	}
	out, err := r.Invoke(ctx, "upper", "quiet words")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "QUIET WORDS" {
		t.Fatalf("Invoke = %q", out)
	}
}
