// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/executor"
	"github.com/jllopis/synai/pkg/linker"
)

type styles struct {
	title lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	fail  lipgloss.Style
	dim   lipgloss.Style
	label lipgloss.Style
}

// newStyles binds styles to w so colors are dropped when w is not a
// terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		ok:    r.NewStyle().Foreground(lipgloss.Color("46")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("220")),
		fail:  r.NewStyle().Foreground(lipgloss.Color("196")),
		dim:   r.NewStyle().Foreground(lipgloss.Color("243")),
		label: r.NewStyle().Foreground(lipgloss.Color("243")),
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderWarnings(w io.Writer, st styles, warnings []synerrors.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w, st.warn.Render(fmt.Sprintf("%d warning(s):", len(warnings))))
	for _, wn := range warnings {
		fmt.Fprintf(w, "  %s %s\n", st.warn.Render("!"), wn.String())
	}
}

func renderLink(w io.Writer, st styles, path string, art *linker.Artifact) {
	fmt.Fprintf(w, "%s %s\n", st.ok.Render("Linked"), path)
	fmt.Fprintf(w, "  %s %d  %s %d\n",
		st.label.Render("nodes:"), art.Metadata.Nodes,
		st.label.Render("edges:"), art.Metadata.Edges)
	if art.Metadata.HasCycles {
		fmt.Fprintf(w, "  %s %s\n", st.warn.Render("cycles:"), strings.Join(art.Metadata.CycleNodes, ", "))
	}
	renderWarnings(w, st, art.Metadata.Warnings)
}

func renderResult(w io.Writer, st styles, res *executor.Result) {
	status := st.ok.Render(res.Status)
	if res.Status != executor.StatusCompleted {
		status = st.warn.Render(res.Status)
	}
	fmt.Fprintf(w, "%s %s/%s %s\n", st.title.Render("Run"), res.Orchestrator, res.Workflow, status)
	fmt.Fprintf(w, "  %s %s\n", st.label.Render("run id:"), res.RunID)
	for i, rec := range res.Records {
		mark := st.ok.Render("✓")
		if rec.Error != "" {
			mark = st.fail.Render("✗")
		}
		fmt.Fprintf(w, "  %s %d. %s.%s %s\n     %s\n",
			mark, i+1, rec.Agent, rec.Intent,
			st.dim.Render("("+rec.Mode+")"),
			rec.Output)
	}
	renderWarnings(w, st, res.Warnings)
}
