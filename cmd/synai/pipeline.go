// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jllopis/synai/pkg/ast"
	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/linker"
	"github.com/jllopis/synai/pkg/parser"
	"github.com/jllopis/synai/pkg/validator"
)

// buildDocument is what build writes and link reads back.
type buildDocument struct {
	ValidatedAST *ast.Program        `json:"validated_ast"`
	Warnings     []synerrors.Warning `json:"warnings"`
}

func isSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".synai", ".syn":
		return true
	}
	return false
}

func (a *app) parseFile(path string) (*ast.Program, error) {
	return parser.New().ParseFile(path)
}

func (a *app) validate(prog *ast.Program) (*validator.Validated, error) {
	return validator.New(validator.WithLogger(a.logger)).Validate(prog)
}

func (a *app) link(v *validator.Validated, source string) (*linker.Artifact, error) {
	return linker.New(linker.WithLogger(a.logger)).Link(v, source)
}

// compile runs parse, validate and link on a source file.
func (a *app) compile(path string) (*linker.Artifact, error) {
	prog, err := a.parseFile(path)
	if err != nil {
		return nil, err
	}
	v, err := a.validate(prog)
	if err != nil {
		return nil, err
	}
	return a.link(v, path)
}

// loadArtifact compiles source files and loads anything else as a linked
// artifact.
func (a *app) loadArtifact(path string) (*linker.Artifact, error) {
	if isSource(path) {
		return a.compile(path)
	}
	return linker.LoadArtifact(path)
}

// readProgramDocument accepts a build document, a {"program": ...} report
// or a bare program.
func readProgramDocument(data []byte) (*ast.Program, error) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "input is not a JSON document", err)
	}
	for _, key := range []string{"validated_ast", "program"} {
		if raw, ok := wrapper[key]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return ast.ParseJSON(raw)
		}
	}
	return ast.ParseJSON(data)
}

func writeJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return synerrors.New(synerrors.CodeInternal, "create output directory", err).WithContext("path", path)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return synerrors.New(synerrors.CodeInternal, "encode output", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return synerrors.New(synerrors.CodeInternal, "write output", err).WithContext("path", path)
	}
	return nil
}

func (a *app) parseCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "parse <file.synai>",
		Short: "Parse a source file into its AST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := a.parseFile(args[0])
			if err != nil {
				return err
			}
			if output != "" {
				if err := writeJSONFile(output, prog); err != nil {
					return err
				}
			}
			if a.jsonOut {
				return a.printJSON(prog)
			}
			st := newStyles(a.out)
			fmt.Fprintf(a.out, "%s %s (%d declarations)\n", st.ok.Render("AST parsed:"), ast.TypeProgram, len(prog.Declarations))
			if output != "" {
				fmt.Fprintf(a.out, "AST saved to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the AST as JSON to this file")
	return cmd
}

func (a *app) buildCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "build <file.synai>",
		Short: "Parse and validate a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := a.parseFile(args[0])
			if err != nil {
				return err
			}
			v, err := a.validate(prog)
			if err != nil {
				return err
			}
			doc := buildDocument{ValidatedAST: v.Program, Warnings: v.Warnings}
			if output != "" {
				if err := writeJSONFile(output, doc); err != nil {
					return err
				}
			}
			if a.jsonOut {
				return a.printJSON(doc)
			}
			st := newStyles(a.out)
			fmt.Fprintln(a.out, st.ok.Render("Build successful"))
			renderWarnings(a.out, st, v.Warnings)
			if output != "" {
				fmt.Fprintf(a.out, "Built to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the validated AST to this file")
	return cmd
}

func (a *app) linkCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "link <file>",
		Short: "Link a source file or validated AST into an artifact",
		Long: `link compiles its input into a linked artifact.

The input is a .synai source file or a JSON document written by build (a
bare program document is accepted too). The artifact is written next to the
input as <name>_linked.synx unless -o is given; .yaml/.yml outputs are
written as YAML and a trailing .zst compresses the file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			var (
				art *linker.Artifact
				err error
			)
			if isSource(in) {
				art, err = a.compile(in)
			} else {
				art, err = a.linkDocument(in)
			}
			if err != nil {
				return err
			}
			if output == "" {
				output = linker.DefaultArtifactPath(in)
			}
			if err := linker.SaveArtifact(output, art); err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(map[string]any{"output": output, "metadata": art.Metadata})
			}
			renderLink(a.out, newStyles(a.out), output, art)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Artifact path (default <name>_linked.synx)")
	return cmd
}

func (a *app) linkDocument(path string) (*linker.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, synerrors.New(synerrors.CodeNotFound, "read input", err).WithContext("path", path)
	}
	prog, err := readProgramDocument(data)
	if err != nil {
		return nil, err
	}
	v, err := a.validate(prog)
	if err != nil {
		return nil, err
	}
	return a.link(v, path)
}
