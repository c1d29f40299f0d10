// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"

	"github.com/jllopis/synai/pkg/tools"
)

// PropertyTool names the tool a TOOL agent invokes.
const PropertyTool = "tool"

// ToolAdapter runs intents through a tool registry. The tool is the agent's
// tool property, or the intent name when the property is absent.
type ToolAdapter struct {
	tools *tools.Registry
}

// NewToolAdapter returns an adapter over r.
func NewToolAdapter(r *tools.Registry) *ToolAdapter {
	return &ToolAdapter{tools: r}
}

func (a *ToolAdapter) Execute(ctx context.Context, req Request) (string, error) {
	name := req.Intent
	if req.Agent != nil {
		if t := req.Agent.Property(PropertyTool); t != "" {
			name = t
		}
	}
	return a.tools.Invoke(ctx, name, req.Input)
}
