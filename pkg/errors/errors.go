// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling with rich context for SynAI.
//
// Every fatal pipeline failure (parse, schema, reference, link) and every
// recoverable adapter failure (generation, tool) is a *SynaiError carrying an
// ErrorCode, so callers can classify failures without string matching.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode classifies SynAI errors for reporting and recovery.
type ErrorCode string

const (
	// CodeSyntax indicates the source text does not match the grammar.
	CodeSyntax ErrorCode = "SYNTAX_ERROR"

	// CodeSchema indicates a structurally invalid AST.
	CodeSchema ErrorCode = "SCHEMA_ERROR"

	// CodeReference indicates a dangling agent, orchestrator or workflow reference.
	CodeReference ErrorCode = "REFERENCE_ERROR"

	// CodeLink indicates the AST cannot be linked into a graph.
	CodeLink ErrorCode = "LINK_ERROR"

	// CodeGeneration indicates a generator (LLM provider) failure.
	CodeGeneration ErrorCode = "GENERATION_ERROR"

	// CodeTool indicates a tool invocation failure.
	CodeTool ErrorCode = "TOOL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeContextLost indicates the context was canceled mid-operation.
	CodeContextLost ErrorCode = "CONTEXT_LOST"

	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// SynaiError is a typed error with rich context for diagnostics.
// It implements the error interface and can be unwrapped with errors.As().
type SynaiError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface. Context keys are appended in sorted
// order so the message locates the offending declaration.
func (e *SynaiError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		fmt.Fprintf(&sb, " (%s)", strings.Join(parts, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *SynaiError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *SynaiError) MarshalJSON() ([]byte, error) {
	out := struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new SynaiError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *SynaiError {
	return &SynaiError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// Newf creates a SynaiError without a cause and a formatted message.
func Newf(code ErrorCode, format string, args ...any) *SynaiError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *SynaiError) WithContext(key string, value interface{}) *SynaiError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *SynaiError) WithRecoverable(recoverable bool) *SynaiError {
	e.Recoverable = recoverable
	return e
}

// AsSynaiError attempts to convert an error to a SynaiError.
// Returns the first SynaiError in the chain, or wraps err as internal.
func AsSynaiError(err error) *SynaiError {
	if err == nil {
		return nil
	}
	var se *SynaiError
	if stderrors.As(err, &se) {
		return se
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the first SynaiError in the chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var se *SynaiError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Is reports whether any SynaiError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var se *SynaiError
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Err
	}
	return false
}
