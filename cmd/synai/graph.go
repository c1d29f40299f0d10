// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jllopis/synai/pkg/linker"
)

type graphResult struct {
	Format    string `json:"format"`
	Content   string `json:"content"`
	GraphID   string `json:"graph_id,omitempty"`
	Nodes     int    `json:"nodes"`
	Edges     int    `json:"edges"`
	HasCycles bool   `json:"has_cycles"`
}

func (a *app) graphCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "graph <artifact|file.synai>",
		Short: "Render the linked graph as Mermaid, DOT or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			art, err := a.loadArtifact(args[0])
			if err != nil {
				return err
			}
			content, err := renderGraph(art, format)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(graphResult{
					Format:    format,
					Content:   content,
					GraphID:   art.Metadata.ID,
					Nodes:     len(art.Graph.Nodes),
					Edges:     len(art.Graph.Edges),
					HasCycles: art.Metadata.HasCycles,
				})
			}
			fmt.Fprint(a.out, content)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "Output format: mermaid, dot, json")
	return cmd
}

func renderGraph(art *linker.Artifact, format string) (string, error) {
	switch format {
	case "mermaid":
		return toMermaid(art.Graph), nil
	case "dot":
		return toDot(art.Graph), nil
	case "json":
		data, err := linker.MarshalJSON(art, true)
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	}
	return "", newArgumentError(fmt.Sprintf("unknown output format %q; use mermaid, dot, or json", format))
}

func nodeLabel(n linker.Node) string {
	switch n.Attrs["type"] {
	case linker.NodeAgent:
		return fmt.Sprintf("%v: %v", n.Attrs["agent"], n.Attrs["agent_type"])
	case linker.NodeIntent:
		return fmt.Sprintf("%v.intent(%v)", n.Attrs["agent"], n.Attrs["intent"])
	}
	return n.ID
}

// edgeLabel lists the declared connect options, sorted by name.
func edgeLabel(e linker.Edge) string {
	if e.Attrs["type"] != linker.EdgeConnect {
		return ""
	}
	var parts []string
	for k, v := range e.Attrs {
		if k == "type" || k == "workflow" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	if len(parts) == 0 {
		return "connect"
	}
	return strings.Join(parts, " ")
}

// Mermaid ids cannot contain ':'; nodes get positional ids.
func toMermaid(g *linker.Graph) string {
	ids := make(map[string]string, len(g.Nodes))
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for i, n := range g.Nodes {
		id := fmt.Sprintf("n%d", i)
		ids[n.ID] = id
		label := strings.ReplaceAll(nodeLabel(n), `"`, "'")
		switch n.Attrs["type"] {
		case linker.NodePort:
			sb.WriteString(fmt.Sprintf("    %s([\"%s\"])\n", id, label))
		case linker.NodeIntent:
			sb.WriteString(fmt.Sprintf("    %s{{\"%s\"}}\n", id, label))
		default:
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", id, label))
		}
	}
	for _, e := range g.Edges {
		if label := edgeLabel(e); label != "" {
			sb.WriteString(fmt.Sprintf("    %s -.->|%s| %s\n", ids[e.Source], label, ids[e.Target]))
		} else {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", ids[e.Source], ids[e.Target]))
		}
	}
	return sb.String()
}

func toDot(g *linker.Graph) string {
	var sb strings.Builder
	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n")
	for _, n := range g.Nodes {
		attrs := fmt.Sprintf("label=%q", nodeLabel(n))
		switch n.Attrs["type"] {
		case linker.NodePort:
			attrs += ", shape=ellipse"
		case linker.NodeIntent:
			attrs += ", shape=hexagon"
		}
		sb.WriteString(fmt.Sprintf("    %q [%s];\n", n.ID, attrs))
	}
	for _, e := range g.Edges {
		attrs := ""
		if label := edgeLabel(e); label != "" {
			attrs = fmt.Sprintf(" [label=%q, style=dashed]", label)
		}
		sb.WriteString(fmt.Sprintf("    %q -> %q%s;\n", e.Source, e.Target, attrs))
	}
	sb.WriteString("}\n")
	return sb.String()
}
