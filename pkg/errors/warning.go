// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"fmt"
	"sort"
	"strings"
)

// WarningCode classifies non-fatal diagnostics.
type WarningCode string

const (
	// WarnEmptyOrchestrator flags an orchestrator without agents.
	WarnEmptyOrchestrator WarningCode = "EMPTY_ORCHESTRATOR"
	// WarnMissingWorkflow flags a run whose workflow does not exist.
	WarnMissingWorkflow WarningCode = "MISSING_WORKFLOW"
	// WarnMissingAgent flags an intent whose agent cannot be resolved at run time.
	WarnMissingAgent WarningCode = "MISSING_AGENT"
	// WarnUnknownStatement flags a statement type the executor does not handle.
	WarnUnknownStatement WarningCode = "UNKNOWN_STATEMENT"
	// WarnAdapterFailure flags an adapter error recovered into an output value.
	WarnAdapterFailure WarningCode = "ADAPTER_FAILURE"
	// WarnMissingSourceOutput flags a connect whose source has produced nothing yet.
	WarnMissingSourceOutput WarningCode = "MISSING_SOURCE_OUTPUT"
	// WarnUnknownTransform flags a connect transform that is not registered.
	WarnUnknownTransform WarningCode = "UNKNOWN_TRANSFORM"
	// WarnTransformFailure flags a transform that failed; the value passes through.
	WarnTransformFailure WarningCode = "TRANSFORM_FAILURE"
	// WarnDeferredOption flags connect options stored but not interpreted.
	WarnDeferredOption WarningCode = "DEFERRED_OPTION"
)

// Warning is a non-fatal diagnostic collected during build or execution.
type Warning struct {
	Code    WarningCode       `json:"code"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

// NewWarning creates a warning. kv are alternating context keys and values.
func NewWarning(code WarningCode, msg string, kv ...string) Warning {
	w := Warning{Code: code, Message: msg}
	if len(kv) > 1 {
		w.Context = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			w.Context[kv[i]] = kv[i+1]
		}
	}
	return w
}

func (w Warning) String() string {
	if len(w.Context) == 0 {
		return fmt.Sprintf("[%s] %s", w.Code, w.Message)
	}
	keys := make([]string, 0, len(w.Context))
	for k := range w.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + w.Context[k]
	}
	return fmt.Sprintf("[%s] %s (%s)", w.Code, w.Message, strings.Join(parts, ", "))
}
