// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/resilience"
)

const (
	defaultMCPTimeout  = 10 * time.Second
	defaultMCPRetries  = 2
	defaultMCPBackoff  = 200 * time.Millisecond
	defaultMCPCacheTTL = 30 * time.Second
)

// MCPOption customizes an MCPClient.
type MCPOption func(*MCPClient)

// WithMCPTimeout sets the per-request timeout.
func WithMCPTimeout(timeout time.Duration) MCPOption {
	return func(c *MCPClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMCPRetry configures retry count and initial backoff.
func WithMCPRetry(retries int, backoff time.Duration) MCPOption {
	return func(c *MCPClient) {
		if retries >= 0 {
			c.retry.MaxAttempts = retries + 1
		}
		if backoff > 0 {
			c.retry.InitialDelay = backoff
		}
	}
}

// WithMCPToolCacheTTL sets the tool discovery cache TTL. Use 0 to disable caching.
func WithMCPToolCacheTTL(ttl time.Duration) MCPOption {
	return func(c *MCPClient) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// MCPClient wraps an mcp-go client with timeouts, retries and a tool list cache.
type MCPClient struct {
	mcpClient client.MCPClient
	timeout   time.Duration
	retry     resilience.RetryConfig
	cacheTTL  time.Duration

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// NewMCPClient wraps an already initialized MCP client.
func NewMCPClient(c client.MCPClient, opts ...MCPOption) *MCPClient {
	mc := &MCPClient{
		mcpClient: c,
		timeout:   defaultMCPTimeout,
		retry: resilience.DefaultRetryConfig().
			WithMaxAttempts(defaultMCPRetries + 1).
			WithInitialDelay(defaultMCPBackoff).
			WithIsRecoverable(func(err error) bool {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}),
		cacheTTL: defaultMCPCacheTTL,
	}
	for _, opt := range opts {
		opt(mc)
	}
	return mc
}

// DialStdio starts command as an MCP server subprocess and initializes the
// session. env entries are KEY=value pairs added to the subprocess
// environment.
func DialStdio(ctx context.Context, command string, env, args []string, opts ...MCPOption) (*MCPClient, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, synerrors.New(synerrors.CodeTool, "start mcp server", err).WithContext("command", command)
	}
	if err := Initialize(ctx, c); err != nil {
		c.Close()
		return nil, err
	}
	return NewMCPClient(c, opts...), nil
}

// Initialize starts the transport of c and performs the MCP handshake.
func Initialize(ctx context.Context, c *client.Client) error {
	if err := c.Start(ctx); err != nil {
		return synerrors.New(synerrors.CodeTool, "start mcp transport", err)
	}
	initCtx, cancel := context.WithTimeout(ctx, defaultMCPTimeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "synai", Version: "0.1.0"}
	if _, err := c.Initialize(initCtx, req); err != nil {
		return synerrors.New(synerrors.CodeTool, "initialize mcp session", err)
	}
	return nil
}

// ListTools retrieves the tools exposed by the server.
func (c *MCPClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}
	res, err := resilience.Retry(ctx, c.retry, func() (*mcp.ListToolsResult, error) {
		reqCtx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.mcpClient.ListTools(reqCtx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}
	c.storeTools(res.Tools)
	return res.Tools, nil
}

// CallTool executes a tool on the server.
func (c *MCPClient) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return resilience.Retry(ctx, c.retry, func() (*mcp.CallToolResult, error) {
		reqCtx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.mcpClient.CallTool(reqCtx, req)
	})
}

// Tools lists the server tools wrapped as Tool values.
func (c *MCPClient) Tools(ctx context.Context) ([]Tool, error) {
	defs, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Tool, 0, len(defs))
	for _, d := range defs {
		t, err := NewMCPTool(d, c)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Close closes the client connection.
func (c *MCPClient) Close() error {
	return c.mcpClient.Close()
}

func (c *MCPClient) cachedTools() []mcp.Tool {
	if c.cacheTTL == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toolsCache) == 0 || time.Now().After(c.cacheExpiry) {
		return nil
	}
	return append([]mcp.Tool(nil), c.toolsCache...)
}

func (c *MCPClient) storeTools(tools []mcp.Tool) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = append([]mcp.Tool(nil), tools...)
	c.cacheExpiry = time.Now().Add(c.cacheTTL)
}

func (c *MCPClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// ToolCaller abstracts MCP tool execution.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// MCPTool exposes one MCP server tool through the Tool contract.
type MCPTool struct {
	def    mcp.Tool
	caller ToolCaller
}

// NewMCPTool builds a Tool backed by an MCP tool definition and caller.
func NewMCPTool(def mcp.Tool, caller ToolCaller) (*MCPTool, error) {
	if def.Name == "" {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "mcp tool name is required", nil)
	}
	if caller == nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "mcp tool caller is required", nil)
	}
	return &MCPTool{def: def, caller: caller}, nil
}

func (t *MCPTool) Name() string { return t.def.Name }

// Invoke maps the text input onto the tool arguments: a JSON object is
// passed through, anything else goes into the single required field or
// "input".
func (t *MCPTool) Invoke(ctx context.Context, input string) (string, error) {
	args := t.arguments(input)
	for _, key := range t.def.InputSchema.Required {
		if _, ok := args[key]; !ok {
			return "", synerrors.Newf(synerrors.CodeTool, "missing required argument %q", key).
				WithContext("tool", t.def.Name)
		}
	}
	res, err := t.caller.CallTool(ctx, t.def.Name, args)
	if err != nil {
		return "", synerrors.New(synerrors.CodeTool, "mcp call failed", err).
			WithContext("tool", t.def.Name).
			WithRecoverable(true)
	}
	return resultText(t.def.Name, res)
}

func (t *MCPTool) arguments(input string) map[string]any {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return map[string]any{}
	}
	if strings.HasPrefix(trimmed, "{") {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	key := "input"
	if req := t.def.InputSchema.Required; len(req) == 1 {
		key = req[0]
	}
	return map[string]any{key: input}
}

func resultText(name string, res *mcp.CallToolResult) (string, error) {
	if res == nil {
		return "", synerrors.New(synerrors.CodeTool, "mcp tool returned no result", nil).WithContext("tool", name)
	}
	text := extractText(res.Content)
	if res.IsError {
		return "", synerrors.Newf(synerrors.CodeTool, "mcp tool returned error: %s", text).WithContext("tool", name)
	}
	if text != "" {
		return text, nil
	}
	if res.StructuredContent != nil {
		data, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return "", synerrors.New(synerrors.CodeTool, "encode structured result", err).WithContext("tool", name)
		}
		return string(data), nil
	}
	return "", nil
}

func extractText(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// RegisterMCP lists the tools of c and registers each one in r.
func RegisterMCP(ctx context.Context, r *Registry, c *MCPClient) error {
	ts, err := c.Tools(ctx)
	if err != nil {
		return fmt.Errorf("list mcp tools: %w", err)
	}
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
