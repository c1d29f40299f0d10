package executor

import (
	"time"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Record is the outcome of one intent.
type Record struct {
	Intent string `json:"intent"`
	Agent  string `json:"agent"`
	Output string `json:"output"`
	Input  string `json:"input"`
	Kind   string `json:"kind,omitempty"`
	// Mode is "mock" when no adapter served the agent type.
	Mode  string `json:"mode"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of one run. A cancelled run carries the records
// produced before cancellation.
type Result struct {
	RunID        string              `json:"run_id"`
	Orchestrator string              `json:"orchestrator"`
	Workflow     string              `json:"workflow"`
	Status       string              `json:"status"`
	Records      []Record            `json:"results"`
	DataFlow     map[string]string   `json:"data_flow"`
	Warnings     []synerrors.Warning `json:"warnings,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
}

// Outputs returns the output strings in execution order.
func (r *Result) Outputs() []string {
	out := make([]string, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.Output
	}
	return out
}
