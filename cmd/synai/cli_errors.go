// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/parser"
)

// CLIError adds a usage hint to an error.
type CLIError struct {
	Err  error
	Hint string
}

func (e *CLIError) Error() string {
	msg := e.Err.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

func (e *CLIError) Unwrap() error { return e.Err }

func newConfigError(err error, configPath string) *CLIError {
	hint := "check your configuration file syntax"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return &CLIError{Err: err, Hint: hint}
}

func newArgumentError(reason string) *CLIError {
	return &CLIError{
		Err:  synerrors.New(synerrors.CodeInvalidInput, "invalid argument: "+reason, nil),
		Hint: "run 'synai help' for usage information",
	}
}

// hintFor suggests the next step for a pipeline error.
func hintFor(err error) string {
	var cli *CLIError
	if errors.As(err, &cli) && cli.Hint != "" {
		return cli.Hint
	}
	switch synerrors.CodeOf(err) {
	case synerrors.CodeSyntax:
		return "fix the source at the reported line and column"
	case synerrors.CodeSchema, synerrors.CodeReference:
		return "run 'synai build' to list every validation finding"
	case synerrors.CodeLink:
		return "check that the run directive names a declared orchestrator and workflow"
	case synerrors.CodeNotFound:
		return "check the file path"
	case synerrors.CodeInvalidInput:
		return "run 'synai help' for usage information"
	}
	return ""
}

func (a *app) printError(err error) {
	code := string(synerrors.CodeOf(err))
	if code == "" {
		code = "UNKNOWN"
	}
	msg := err.Error()
	var cli *CLIError
	if errors.As(err, &cli) {
		msg = cli.Err.Error()
	}
	hint := hintFor(err)

	if a.jsonOut {
		doc := map[string]any{"code": code, "message": msg}
		if hint != "" {
			doc["hint"] = hint
		}
		var se *parser.SyntaxError
		if errors.As(err, &se) {
			doc["line"] = se.Line
			doc["column"] = se.Column
		}
		data, _ := json.Marshal(map[string]any{"error": doc})
		fmt.Fprintln(a.errOut, string(data))
		return
	}

	st := newStyles(a.errOut)
	fmt.Fprintf(a.errOut, "%s %s\n", st.fail.Render("Error ["+code+"]:"), msg)
	if hint != "" {
		fmt.Fprintf(a.errOut, "  %s %s\n", st.dim.Render("Hint:"), hint)
	}
}
