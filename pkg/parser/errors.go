// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"fmt"
	"strings"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

// SyntaxError reports source text that does not match the grammar.
// Line and Column are 1-based; Snippet holds the offending line followed by a
// caret under the column.
type SyntaxError struct {
	Filename string
	Line     int
	Column   int
	Message  string
	Snippet  string

	coded *synerrors.SynaiError
}

func newSyntaxError(filename, src string, line, column int, msg string) *SyntaxError {
	se := &SyntaxError{
		Filename: filename,
		Line:     line,
		Column:   column,
		Message:  msg,
		Snippet:  snippet(src, line, column),
	}
	se.coded = synerrors.New(synerrors.CodeSyntax, msg, nil).
		WithContext("file", filename).
		WithContext("line", line).
		WithContext("column", column)
	return se
}

func (e *SyntaxError) Error() string {
	loc := fmt.Sprintf("%d:%d", e.Line, e.Column)
	if e.Filename != "" {
		loc = e.Filename + ":" + loc
	}
	if e.Snippet == "" {
		return fmt.Sprintf("%s: syntax error: %s", loc, e.Message)
	}
	return fmt.Sprintf("%s: syntax error: %s\n%s", loc, e.Message, e.Snippet)
}

// Unwrap exposes the coded SYNTAX_ERROR so callers can classify it with
// errors.Is / errors.CodeOf from pkg/errors.
func (e *SyntaxError) Unwrap() error {
	return e.coded
}

func snippet(src string, line, column int) string {
	if line < 1 {
		return ""
	}
	lines := strings.Split(src, "\n")
	if line > len(lines) {
		return ""
	}
	text := strings.TrimRight(lines[line-1], "\r")
	var caret strings.Builder
	for i, r := range text {
		if i >= column-1 {
			break
		}
		if r == '\t' {
			caret.WriteByte('\t')
		} else {
			caret.WriteByte(' ')
		}
	}
	caret.WriteByte('^')
	return fmt.Sprintf("%4d | %s\n     | %s", line, text, caret.String())
}
