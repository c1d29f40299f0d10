package executor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func auditFixture() []AuditEvent {
	at := time.Date(2026, 2, 3, 4, 5, 6, 789000, time.UTC)
	return []AuditEvent{
		{RunID: "r1", Orchestrator: "o", Workflow: "w", Step: 0, Statement: "Intent", Agent: "a", Intent: "go",
			Status: AuditCompleted, Input: "hi", Output: "out", StartedAt: at, FinishedAt: at},
		{RunID: "r1", Orchestrator: "o", Workflow: "w", Step: 1, Statement: "Connect", Agent: "b",
			Status: AuditPropagated, Input: "a", Output: "out", StartedAt: at, FinishedAt: at},
		{RunID: "r1", Orchestrator: "o", Workflow: "w", Step: 2, Statement: "Intent", Agent: "b", Intent: "use",
			Status: AuditFailed, Input: "out", Output: "error_use(boom)", Error: "boom", StartedAt: at, FinishedAt: at},
		{RunID: "r2", Orchestrator: "o", Workflow: "w", Step: 0, Statement: "Intent", Agent: "a", Intent: "go",
			Status: AuditCompleted, Input: "hi", Output: "out", StartedAt: at, FinishedAt: at},
	}
}

func testAuditStore(t *testing.T, store AuditStore) {
	t.Helper()
	ctx := context.Background()
	all := auditFixture()
	for _, ev := range all {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter AuditFilter
		want   []AuditEvent
	}{
		{"everything", AuditFilter{}, all},
		{"by run", AuditFilter{RunID: "r1"}, all[:3]},
		{"by agent", AuditFilter{Agent: "b"}, all[1:3]},
		{"by status", AuditFilter{Status: AuditFailed}, all[2:3]},
		{"combined", AuditFilter{RunID: "r2", Agent: "a"}, all[3:]},
		{"limit", AuditFilter{RunID: "r1", Limit: 2}, all[:2]},
		{"no match", AuditFilter{RunID: "r9"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("List (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemoryAuditStore(t *testing.T) {
	testAuditStore(t, NewMemoryAuditStore())
}

func TestSQLiteAuditStore(t *testing.T) {
	store, err := OpenSQLiteAuditStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteAuditStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	testAuditStore(t, store)
}

func TestSQLiteAuditStoreFromRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := OpenSQLiteAuditStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteAuditStore: %v", err)
	}
	res, err := quiet(WithAuditStore(store)).Run(context.Background(), link(t, demoSource), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSQLiteAuditStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.List(context.Background(), AuditFilter{RunID: res.RunID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Output != "mock_result_go(hi)" || got[0].Status != AuditCompleted {
		t.Fatalf("persisted audit = %+v", got)
	}
}

func TestAuditTime(t *testing.T) {
	in := time.Date(2026, 1, 1, 0, 0, 0, 123456789, time.FixedZone("X", 3600))
	got := auditTime(in)
	if got.Location() != time.UTC || got.Nanosecond() != 123456000 {
		t.Fatalf("auditTime = %v", got)
	}
}
