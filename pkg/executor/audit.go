package executor

import (
	"context"
	"sync"
	"time"
)

// Audit statuses.
const (
	AuditCompleted  = "completed"
	AuditFailed     = "failed"
	AuditSkipped    = "skipped"
	AuditPropagated = "propagated"
)

// AuditEvent is one statement processed by a run.
type AuditEvent struct {
	RunID        string    `json:"run_id"`
	Orchestrator string    `json:"orchestrator"`
	Workflow     string    `json:"workflow"`
	Step         int       `json:"step"`
	Statement    string    `json:"statement"`
	Agent        string    `json:"agent,omitempty"`
	Intent       string    `json:"intent,omitempty"`
	Status       string    `json:"status"`
	Input        string    `json:"input,omitempty"`
	Output       string    `json:"output,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// AuditStore persists audit events.
type AuditStore interface {
	Record(ctx context.Context, event AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// AuditFilter limits audit queries. Zero fields match everything.
type AuditFilter struct {
	RunID  string
	Agent  string
	Status string
	Limit  int
}

func (f AuditFilter) match(ev AuditEvent) bool {
	return (f.RunID == "" || ev.RunID == f.RunID) &&
		(f.Agent == "" || ev.Agent == f.Agent) &&
		(f.Status == "" || ev.Status == f.Status)
}

// MemoryAuditStore keeps audit events in memory.
type MemoryAuditStore struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryAuditStore returns an in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Record(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryAuditStore) List(_ context.Context, filter AuditFilter) ([]AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, 0, len(s.events))
	for _, ev := range s.events {
		if !filter.match(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
