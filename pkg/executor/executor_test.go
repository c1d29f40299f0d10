package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jllopis/synai/pkg/adapter"
	"github.com/jllopis/synai/pkg/ast"
	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/events"
	"github.com/jllopis/synai/pkg/linker"
	"github.com/jllopis/synai/pkg/parser"
	"github.com/jllopis/synai/pkg/transform"
	"github.com/jllopis/synai/pkg/validator"
)

const demoSource = `orchestrator "demo" { agents { a: LLM { model: "x" } } workflow "w" { start: a.intent("go", input: "hi") } } run "demo" with workflow "w"`

func link(t *testing.T, src string) *linker.Artifact {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v, err := validator.Validate(prog)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	art, err := linker.Link(v, "test.synai")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	return art
}

// pipeline wraps workflow statements in a two-agent orchestrator.
func pipeline(statements string) string {
	return fmt.Sprintf(`
orchestrator "pipe" {
  agents {
    writer: LLM { model: "llama3.1" }
    reviewer: LLM { model: "llama3.1" }
  }
  workflow "main" {
%s
  }
}
run "pipe" with workflow "main"
`, statements)
}

type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return nil
}

func quiet(opts ...Option) *Executor {
	rec := &sleepRecorder{}
	return New(append([]Option{WithSleep(rec.sleep)}, opts...)...)
}

func warningCodes(r *Result) []synerrors.WarningCode {
	var out []synerrors.WarningCode
	for _, w := range r.Warnings {
		out = append(out, w.Code)
	}
	return out
}

func TestMockDemo(t *testing.T) {
	res, err := quiet().Run(context.Background(), link(t, demoSource), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []Record{{Intent: "go", Agent: "a", Output: "mock_result_go(hi)", Input: "hi", Kind: "start", Mode: "mock"}}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Fatalf("records (-want +got):\n%s", diff)
	}
	if res.Status != StatusCompleted || len(res.Warnings) != 0 {
		t.Fatalf("status %q warnings %v", res.Status, res.Warnings)
	}
	wantFlow := map[string]string{"a_output": "mock_result_go(hi)", "go": "mock_result_go(hi)"}
	if diff := cmp.Diff(wantFlow, res.DataFlow); diff != "" {
		t.Fatalf("data flow (-want +got):\n%s", diff)
	}
}

func TestMockDeterminism(t *testing.T) {
	art := link(t, pipeline(`
    start: writer.intent("draft", input: "topic", output: "draft_doc")
    connect writer.output -> reviewer.input { timeout: 5s }
    step: reviewer.intent("review")
    end: writer.intent("final", input: "draft_doc")`))
	first, err := quiet().Run(context.Background(), art, "pipe")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := quiet().Run(context.Background(), art, "pipe")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatal("each run must get its own id")
	}
	if diff := cmp.Diff(first.Outputs(), second.Outputs()); diff != "" {
		t.Fatalf("outputs differ between runs (-first +second):\n%s", diff)
	}
}

func TestConnectPropagatesWithTimeout(t *testing.T) {
	rec := &sleepRecorder{}
	res, err := New(WithSleep(rec.sleep)).Run(context.Background(), link(t, pipeline(`
    start: writer.intent("draft", input: "topic")
    connect writer.output -> reviewer.input { timeout: 5s }
    step: reviewer.intent("review")`)), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.DataFlow["reviewer_input"]; got != "mock_result_draft(topic)" {
		t.Fatalf("reviewer_input = %q", got)
	}
	if got := res.Records[1].Output; got != "mock_result_review(mock_result_draft(topic))" {
		t.Fatalf("review output = %q", got)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("a synchronous connect must not pause, got %v", rec.calls)
	}
}

func TestInputResolution(t *testing.T) {
	tests := []struct {
		name       string
		statements string
		want       string
	}{
		{
			"literal names a flow key",
			`start: writer.intent("draft", input: "topic", output: "doc")
    step: reviewer.intent("review", input: "doc")`,
			"mock_result_draft(topic)",
		},
		{
			"literal beats routed input",
			`start: writer.intent("draft", input: "topic")
    connect writer.output -> reviewer.input { }
    step: reviewer.intent("review", input: "explicit")`,
			"explicit",
		},
		{
			"literal equal to agent id falls back to routed input",
			`start: writer.intent("draft", input: "topic")
    connect writer.output -> reviewer.input { }
    step: reviewer.intent("review", input: "reviewer")`,
			"mock_result_draft(topic)",
		},
		{
			"literal equal to agent id without routed input",
			`start: writer.intent("draft", input: "topic")
    step: reviewer.intent("review", input: "reviewer")`,
			"reviewer",
		},
		{
			"no input at all",
			`start: writer.intent("draft", input: "topic")
    step: reviewer.intent("review")`,
			"",
		},
		{
			"intent name is an alias",
			`start: writer.intent("draft", input: "topic")
    step: reviewer.intent("review", input: "draft")`,
			"mock_result_draft(topic)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := quiet().Run(context.Background(), link(t, pipeline(tt.statements)), "")
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			last := res.Records[len(res.Records)-1]
			if last.Input != tt.want {
				t.Fatalf("input = %q, want %q", last.Input, tt.want)
			}
		})
	}
}

func TestPacing(t *testing.T) {
	tests := []struct {
		name    string
		options string
		delay   time.Duration
		want    []time.Duration
	}{
		{"async default", "async: true", 0, []time.Duration{100 * time.Millisecond}},
		{"async bounded by timeout", "async: true timeout: 5s", 2 * time.Second, []time.Duration{500 * time.Millisecond}},
		{"async below bound", "async: true timeout: 5s", 0, []time.Duration{100 * time.Millisecond}},
		{"timeout alone", "timeout: 5s", 0, nil},
		{"async false", "async: false", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &sleepRecorder{}
			opts := []Option{WithSleep(rec.sleep)}
			if tt.delay > 0 {
				opts = append(opts, WithAsyncDelay(tt.delay))
			}
			_, err := New(opts...).Run(context.Background(), link(t, pipeline(`
    start: writer.intent("draft")
    connect writer.output -> reviewer.input { `+tt.options+` }`)), "")
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if diff := cmp.Diff(tt.want, rec.calls); diff != "" {
				t.Fatalf("sleeps (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConnectWarnings(t *testing.T) {
	tests := []struct {
		name       string
		statements string
		want       []synerrors.WarningCode
		input      string
	}{
		{
			"missing source output",
			`connect writer.output -> reviewer.input { }
    step: reviewer.intent("review")`,
			[]synerrors.WarningCode{synerrors.WarnMissingSourceOutput},
			"",
		},
		{
			"deferred options",
			`start: writer.intent("draft", input: "x")
    connect writer.output -> reviewer.input { retry: 2 filter: "len > 0" }
    step: reviewer.intent("review")`,
			[]synerrors.WarningCode{synerrors.WarnDeferredOption},
			"mock_result_draft(x)",
		},
		{
			"unknown transform",
			`start: writer.intent("draft", input: "x")
    connect writer.output -> reviewer.input { transform: "summarize" }
    step: reviewer.intent("review")`,
			[]synerrors.WarningCode{synerrors.WarnUnknownTransform},
			"mock_result_draft(x)",
		},
		{
			"builtin transform",
			`start: writer.intent("draft", input: "x")
    connect writer.output -> reviewer.input { transform: "upper" }
    step: reviewer.intent("review")`,
			nil,
			"MOCK_RESULT_DRAFT(X)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := quiet().Run(context.Background(), link(t, pipeline(tt.statements)), "")
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if diff := cmp.Diff(tt.want, warningCodes(res)); diff != "" {
				t.Fatalf("warnings (-want +got):\n%s", diff)
			}
			if got := res.Records[len(res.Records)-1].Input; got != tt.input {
				t.Fatalf("review input = %q, want %q", got, tt.input)
			}
			if res.Status != StatusCompleted {
				t.Fatalf("status = %q", res.Status)
			}
		})
	}
}

func TestCustomTransform(t *testing.T) {
	tr := transform.NewRegistry()
	if err := tr.Register("brackets", func(_ context.Context, v string) (string, error) { return "[" + v + "]", nil }); err != nil {
		t.Fatal(err)
	}
	res, err := quiet(WithTransforms(tr)).Run(context.Background(), link(t, pipeline(`
    start: writer.intent("draft", input: "x")
    connect writer.output -> reviewer.input { transform: "brackets" }`)), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.DataFlow["reviewer_input"]; got != "[mock_result_draft(x)]" {
		t.Fatalf("reviewer_input = %q", got)
	}
}

const mixedSource = `
orchestrator "mixed" {
  agents {
    writer: LLM { model: "llama3.1" }
    search: Custom { agent_type: "TOOL" tool: "web" }
  }
  workflow "main" {
    start: search.intent("find", input: "golang")
    connect search.output -> writer.input { }
    end: writer.intent("summarize", output: "summary")
  }
}
run "mixed" with workflow "main"
`

func registry(t *testing.T, llm, tool adapter.Func) *adapter.Registry {
	t.Helper()
	r := adapter.NewRegistry()
	if err := r.Register("llm", llm); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("TOOL", tool); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestAdapterDispatch(t *testing.T) {
	var got []adapter.Request
	llm := func(_ context.Context, req adapter.Request) (string, error) {
		got = append(got, req)
		return "summary of " + req.Input, nil
	}
	tool := func(_ context.Context, req adapter.Request) (string, error) {
		got = append(got, req)
		return "results for " + req.Input, nil
	}
	res, err := quiet(WithAdapters(registry(t, llm, tool))).Run(context.Background(), link(t, mixedSource), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"results for golang", "summary of results for golang"}, res.Outputs()); diff != "" {
		t.Fatalf("outputs (-want +got):\n%s", diff)
	}
	if res.Records[0].Mode != "adapter" || got[1].Output != "summary" || got[1].Agent.ID != "writer" {
		t.Fatalf("unexpected dispatch: %+v / %+v", res.Records, got)
	}
	if res.DataFlow["summary"] != res.DataFlow["writer_output"] || res.DataFlow["summarize"] != res.DataFlow["writer_output"] {
		t.Fatalf("output aliases differ: %v", res.DataFlow)
	}

	forced, err := quiet(WithAdapters(registry(t, llm, tool)), WithMock(true)).Run(context.Background(), link(t, mixedSource), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if forced.Records[0].Output != "mock_result_find(golang)" {
		t.Fatalf("mock mode must bypass adapters: %v", forced.Outputs())
	}
}

func TestAdapterFailureIsRecovered(t *testing.T) {
	failing := func(_ context.Context, req adapter.Request) (string, error) {
		return "", synerrors.New(synerrors.CodeTool, "web tool unavailable", nil)
	}
	llm := func(_ context.Context, req adapter.Request) (string, error) { return "ok(" + req.Input + ")", nil }
	res, err := quiet(WithAdapters(registry(t, llm, failing))).Run(context.Background(), link(t, mixedSource), "")
	if err != nil {
		t.Fatalf("a failing adapter must not fail the run: %v", err)
	}
	first := res.Records[0]
	if !strings.HasPrefix(first.Output, "error_find(") || !strings.Contains(first.Output, "web tool unavailable") {
		t.Fatalf("unexpected error output %q", first.Output)
	}
	if first.Error == "" {
		t.Fatal("record must carry the error")
	}
	if len(res.Records) != 2 || res.Records[1].Output != "ok("+first.Output+")" {
		t.Fatalf("later intents must still run and see the error output: %v", res.Outputs())
	}
	if diff := cmp.Diff([]synerrors.WarningCode{synerrors.WarnAdapterFailure}, warningCodes(res)); diff != "" {
		t.Fatalf("warnings (-want +got):\n%s", diff)
	}
	if res.Warnings[0].Context["code"] != string(synerrors.CodeTool) {
		t.Fatalf("warning context = %v", res.Warnings[0].Context)
	}
}

func TestCancellation(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := quiet().Run(ctx, link(t, demoSource), "")
		if err != nil {
			t.Fatalf("cancellation must not be an error: %v", err)
		}
		if res.Status != StatusCancelled || len(res.Records) != 0 {
			t.Fatalf("status %q records %v", res.Status, res.Records)
		}
	})

	t.Run("between statements", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		tool := func(_ context.Context, req adapter.Request) (string, error) {
			cancel()
			return "found", nil
		}
		llm := func(context.Context, adapter.Request) (string, error) {
			t.Error("no statement may run after cancellation")
			return "", nil
		}
		res, err := quiet(WithAdapters(registry(t, llm, tool))).Run(ctx, link(t, mixedSource), "")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Status != StatusCancelled || len(res.Records) != 1 || res.Records[0].Output != "found" {
			t.Fatalf("status %q records %v", res.Status, res.Records)
		}
		if res.DataFlow["search_output"] != "found" {
			t.Fatalf("partial data flow lost: %v", res.DataFlow)
		}
	})

	t.Run("inside an adapter", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		tool := func(ctx context.Context, req adapter.Request) (string, error) {
			cancel()
			return "", ctx.Err()
		}
		llm := func(context.Context, adapter.Request) (string, error) { return "", nil }
		res, err := quiet(WithAdapters(registry(t, llm, tool))).Run(ctx, link(t, mixedSource), "")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Status != StatusCancelled || len(res.Records) != 0 || len(res.Warnings) != 0 {
			t.Fatalf("status %q records %v warnings %v", res.Status, res.Records, res.Warnings)
		}
	})
}

func TestUnknownStatementAndMissingAgent(t *testing.T) {
	art := link(t, demoSource)
	o, _ := art.ValidatedAST.Orchestrator("demo")
	wf, _ := o.Workflow("w")
	wf.Statements = append(wf.Statements,
		&ast.UnknownStatement{Type: "Loop", Raw: []byte(`{"type":"Loop"}`)},
		&ast.Intent{Kind: ast.KindStep, Agent: "ghost", Name: "haunt"},
		&ast.Intent{Kind: ast.KindEnd, Agent: "a", Name: "after", Input: ast.StringPtr("go")},
	)

	res, err := quiet().Run(context.Background(), art, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []synerrors.WarningCode{synerrors.WarnUnknownStatement, synerrors.WarnMissingAgent}
	if diff := cmp.Diff(want, warningCodes(res)); diff != "" {
		t.Fatalf("warnings (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"mock_result_go(hi)", "mock_result_after(mock_result_go(hi))"}, res.Outputs()); diff != "" {
		t.Fatalf("outputs (-want +got):\n%s", diff)
	}
}

func TestIntentKindsAreAnnotations(t *testing.T) {
	res, err := quiet().Run(context.Background(), link(t, pipeline(`
    end: writer.intent("final", input: "a")
    start: reviewer.intent("first", input: "b")
    start: writer.intent("again", input: "c")`)), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"mock_result_final(a)", "mock_result_first(b)", "mock_result_again(c)"}, res.Outputs()); diff != "" {
		t.Fatalf("outputs (-want +got):\n%s", diff)
	}
}

func TestCyclicGraphRunsInDeclarationOrder(t *testing.T) {
	art := link(t, pipeline(`
    start: writer.intent("draft", input: "x")
    connect writer.output -> reviewer.input { }
    step: reviewer.intent("review")
    connect reviewer.output -> writer.input { }
    end: writer.intent("revise")`))
	if !art.Metadata.HasCycles {
		t.Fatal("expected a cyclic graph")
	}
	res, err := quiet().Run(context.Background(), art, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "mock_result_revise(mock_result_review(mock_result_draft(x)))"
	if got := res.Records[2].Output; got != want {
		t.Fatalf("revise output = %q, want %q", got, want)
	}
}

func TestExecuteErrors(t *testing.T) {
	art := link(t, demoSource)
	tests := []struct {
		name string
		art  *linker.Artifact
		run  *ast.Run
		code synerrors.ErrorCode
	}{
		{"nil artifact", nil, &ast.Run{Orchestrator: "demo", Workflow: "w"}, synerrors.CodeInvalidInput},
		{"nil run", art, nil, synerrors.CodeInvalidInput},
		{"unknown orchestrator", art, &ast.Run{Orchestrator: "nope", Workflow: "w"}, synerrors.CodeReference},
		{"unknown workflow", art, &ast.Run{Orchestrator: "demo", Workflow: "nope"}, synerrors.CodeReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := quiet().Execute(context.Background(), tt.art, tt.run); !synerrors.Is(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
	if _, err := quiet().Run(context.Background(), art, "other"); !synerrors.Is(err, synerrors.CodeReference) {
		t.Fatalf("expected REFERENCE_ERROR for an unknown run target, got %v", err)
	}
}

func TestEventsAndAudit(t *testing.T) {
	rec := events.NewRecorder()
	store := NewMemoryAuditStore()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ex := quiet(
		WithEmitter(rec),
		WithAuditStore(store),
		WithRunIDFunc(func() string { return "run-1" }),
		WithClock(func() time.Time { return fixed }),
	)
	res, err := ex.Run(context.Background(), link(t, pipeline(`
    start: writer.intent("draft", input: "x")
    connect writer.output -> reviewer.input { retry: 1 }`)), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantTypes := []events.Type{
		events.RunStarted,
		events.IntentStarted,
		events.IntentCompleted,
		events.WarningRaised,
		events.ConnectPropagate,
		events.RunCompleted,
	}
	if diff := cmp.Diff(wantTypes, rec.Types()); diff != "" {
		t.Fatalf("event types (-want +got):\n%s", diff)
	}
	for _, ev := range rec.Events() {
		if ev.RunID != "run-1" || ev.Orchestrator != "pipe" || ev.Workflow != "main" {
			t.Fatalf("event missing run identity: %+v", ev)
		}
	}
	if !res.StartedAt.Equal(fixed) || !res.FinishedAt.Equal(fixed) {
		t.Fatalf("times = %v / %v", res.StartedAt, res.FinishedAt)
	}

	audit, err := store.List(context.Background(), AuditFilter{RunID: "run-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []AuditEvent{
		{RunID: "run-1", Orchestrator: "pipe", Workflow: "main", Step: 0, Statement: "Intent", Agent: "writer", Intent: "draft",
			Status: AuditCompleted, Input: "x", Output: "mock_result_draft(x)", StartedAt: fixed, FinishedAt: fixed},
		{RunID: "run-1", Orchestrator: "pipe", Workflow: "main", Step: 1, Statement: "Connect", Agent: "reviewer",
			Status: AuditPropagated, Input: "writer", Output: "mock_result_draft(x)", StartedAt: fixed, FinishedAt: fixed},
	}
	if diff := cmp.Diff(want, audit); diff != "" {
		t.Fatalf("audit (-want +got):\n%s", diff)
	}
}

func TestConcurrentRunsShareArtifact(t *testing.T) {
	art := link(t, pipeline(`
    start: writer.intent("draft", input: "topic")
    connect writer.output -> reviewer.input { async: true }
    step: reviewer.intent("review")`))
	ex := quiet()

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ex.Run(context.Background(), art, "")
		}(i)
	}
	wg.Wait()
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("run %d: %v", i, errs[i])
		}
		if diff := cmp.Diff(results[0].Outputs(), results[i].Outputs()); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
}

func TestAuditFailureDoesNotStopRun(t *testing.T) {
	res, err := quiet(WithAuditStore(failingStore{})).Run(context.Background(), link(t, demoSource), "")
	if err != nil || res.Status != StatusCompleted || len(res.Records) != 1 {
		t.Fatalf("Run = %+v, %v", res, err)
	}
}

type failingStore struct{}

func (failingStore) Record(context.Context, AuditEvent) error { return errors.New("disk full") }
func (failingStore) List(context.Context, AuditFilter) ([]AuditEvent, error) {
	return nil, errors.New("disk full")
}
