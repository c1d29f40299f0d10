// Package executor runs one workflow of a linked artifact: it walks the
// workflow statements in declaration order, dispatches intents to adapters
// chosen by agent type and threads values between agents through a
// data-flow table.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/synai/pkg/adapter"
	"github.com/jllopis/synai/pkg/ast"
	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/events"
	"github.com/jllopis/synai/pkg/linker"
	"github.com/jllopis/synai/pkg/telemetry"
	"github.com/jllopis/synai/pkg/transform"
)

// Pacing defaults.
const (
	DefaultAsyncDelay      = 100 * time.Millisecond
	DefaultTimeoutFraction = 0.1
)

// TracerName is the instrumentation scope of executor spans.
const TracerName = "synai/executor"

// MockOutput is the placeholder produced when no adapter serves an agent.
func MockOutput(intent, input string) string {
	return fmt.Sprintf("mock_result_%s(%s)", intent, input)
}

// ErrorOutput is the value recorded for an intent whose adapter failed.
func ErrorOutput(intent string, err error) string {
	return fmt.Sprintf("error_%s(%s)", intent, err.Error())
}

// Executor runs workflows. It holds no per-run state and may serve
// concurrent runs over the same artifact.
type Executor struct {
	adapters        *adapter.Registry
	transforms      *transform.Registry
	mock            bool
	emitter         events.Emitter
	audit           AuditStore
	metrics         *telemetry.ExecutorMetrics
	tracer          trace.Tracer
	logger          *slog.Logger
	asyncDelay      time.Duration
	timeoutFraction float64
	sleep           func(ctx context.Context, d time.Duration) error
	newRunID        func() string
	now             func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithAdapters sets the adapter registry.
func WithAdapters(r *adapter.Registry) Option {
	return func(e *Executor) { e.adapters = r }
}

// WithTransforms sets the registry used for the connect transform option.
func WithTransforms(r *transform.Registry) Option {
	return func(e *Executor) {
		if r != nil {
			e.transforms = r
		}
	}
}

// WithMock forces mock outputs for every agent, even when an adapter is
// registered for its type.
func WithMock(mock bool) Option {
	return func(e *Executor) { e.mock = mock }
}

// WithEmitter sets the event sink.
func WithEmitter(em events.Emitter) Option {
	return func(e *Executor) {
		if em != nil {
			e.emitter = em
		}
	}
}

// WithAuditStore records every processed statement in s.
func WithAuditStore(s AuditStore) Option {
	return func(e *Executor) { e.audit = s }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *telemetry.ExecutorMetrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithAsyncDelay sets the pause taken after an async connect.
func WithAsyncDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.asyncDelay = d
		}
	}
}

// WithTimeoutFraction sets the share of a connect timeout that bounds the
// async pause.
func WithTimeoutFraction(f float64) Option {
	return func(e *Executor) {
		if f > 0 {
			e.timeoutFraction = f
		}
	}
}

// WithSleep replaces the pacing sleep.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithRunIDFunc overrides the run id generator.
func WithRunIDFunc(fn func() string) Option {
	return func(e *Executor) {
		if fn != nil {
			e.newRunID = fn
		}
	}
}

// WithClock overrides the time source of results and audit events.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Executor. Without adapters every intent runs in mock mode.
func New(opts ...Option) *Executor {
	e := &Executor{
		transforms:      transform.NewRegistry(),
		emitter:         events.Noop{},
		tracer:          otel.Tracer(TracerName),
		logger:          slog.Default(),
		asyncDelay:      DefaultAsyncDelay,
		timeoutFraction: DefaultTimeoutFraction,
		sleep:           sleepContext,
		newRunID:        uuid.NewString,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		if m, err := telemetry.NewExecutorMetrics(nil); err == nil {
			e.metrics = m
		}
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes the run directive of art selected by orchestrator name ("" for
// the first one).
func (e *Executor) Run(ctx context.Context, art *linker.Artifact, orchestrator string) (*Result, error) {
	if art == nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "artifact is nil", nil)
	}
	run, err := art.RunDirective(orchestrator)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, art, run)
}

// Execute runs the workflow named by run. It fails only when the run cannot
// start: a missing artifact, orchestrator or workflow. Adapter failures,
// unknown statements and missing agents become warnings, and cancellation
// returns the partial result with StatusCancelled.
func (e *Executor) Execute(ctx context.Context, art *linker.Artifact, run *ast.Run) (*Result, error) {
	if art == nil || art.ValidatedAST == nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "artifact has no validated AST", nil)
	}
	if run == nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "run directive is required", nil)
	}
	orch, ok := art.ValidatedAST.Orchestrator(run.Orchestrator)
	if !ok {
		return nil, synerrors.Newf(synerrors.CodeReference, "orchestrator %q not found", run.Orchestrator).
			WithContext("orchestrator", run.Orchestrator)
	}
	wf, ok := orch.Workflow(run.Workflow)
	if !ok {
		return nil, synerrors.Newf(synerrors.CodeReference, "workflow %q not found", run.Workflow).
			WithContext("orchestrator", run.Orchestrator).
			WithContext("workflow", run.Workflow)
	}

	r := &runState{
		Executor: e,
		orch:     orch,
		wf:       wf,
		flow:     NewDataFlow(),
		result: &Result{
			RunID:        e.newRunID(),
			Orchestrator: orch.Name,
			Workflow:     wf.Name,
			Records:      []Record{},
			StartedAt:    e.now(),
		},
	}

	ctx, span := e.tracer.Start(ctx, "Executor.Run",
		trace.WithAttributes(telemetry.RunAttributes(r.result.RunID, orch.Name, wf.Name)...))
	defer span.End()

	if art.Metadata.HasCycles {
		e.logger.InfoContext(ctx, "executor.cycles.sequential",
			"run_id", r.result.RunID,
			"cycle_nodes", art.Metadata.CycleNodes)
	}
	e.logger.InfoContext(ctx, "executor.run.started",
		"run_id", r.result.RunID,
		"orchestrator", orch.Name,
		"workflow", wf.Name,
		"statements", len(wf.Statements))
	r.emit(ctx, events.RunStarted, "", "", map[string]any{"statements": len(wf.Statements)})

	status := r.execute(ctx)

	r.result.Status = status
	r.result.DataFlow = r.flow.Snapshot()
	r.result.FinishedAt = e.now()
	span.SetAttributes(attribute.String(telemetry.AttrRunStatus, status))

	done := events.RunCompleted
	if status == StatusCancelled {
		done = events.RunCancelled
	}
	// The run's own context may be gone; the final event still goes out.
	r.emit(context.WithoutCancel(ctx), done, "", "", map[string]any{
		"records":  len(r.result.Records),
		"warnings": len(r.result.Warnings),
	})
	e.logger.InfoContext(ctx, "executor.run.done",
		"run_id", r.result.RunID,
		"status", status,
		"records", len(r.result.Records),
		"warnings", len(r.result.Warnings))
	return r.result, nil
}

// runState is the mutable state of one run.
type runState struct {
	*Executor
	orch   *ast.Orchestrator
	wf     *ast.Workflow
	flow   *DataFlow
	result *Result
	step   int
}

func (r *runState) execute(ctx context.Context) string {
	for i, stmt := range r.wf.Statements {
		r.step = i
		if ctx.Err() != nil {
			r.logger.WarnContext(ctx, "executor.run.cancelled", "run_id", r.result.RunID, "step", i)
			return StatusCancelled
		}
		var cancelled bool
		switch s := stmt.(type) {
		case *ast.Intent:
			cancelled = r.intent(ctx, s)
		case *ast.Connect:
			cancelled = r.connect(ctx, s)
		default:
			r.warn(ctx, synerrors.NewWarning(synerrors.WarnUnknownStatement,
				fmt.Sprintf("statement type %q is not executable", stmt.StatementType()),
				"workflow", r.wf.Name, "statement", stmt.StatementType()))
			r.record(ctx, AuditEvent{Statement: stmt.StatementType(), Status: AuditSkipped})
		}
		if cancelled {
			return StatusCancelled
		}
	}
	return StatusCompleted
}

// resolveInput picks the value an intent receives: a flow key named by the
// literal, the literal itself unless it only repeats the agent id, a value
// routed to the agent's input port, and finally the literal as declared.
func (r *runState) resolveInput(in *ast.Intent) string {
	if in.Input != nil {
		if v, ok := r.flow.Get(*in.Input); ok {
			return v
		}
		if *in.Input != in.Agent {
			return *in.Input
		}
	}
	if v, ok := r.flow.Get(InputKey(in.Agent)); ok {
		return v
	}
	return in.InputValue()
}

func (r *runState) intent(ctx context.Context, in *ast.Intent) bool {
	agent, ok := r.orch.Agent(in.Agent)
	if !ok {
		r.warn(ctx, synerrors.NewWarning(synerrors.WarnMissingAgent,
			fmt.Sprintf("agent %q is not declared; intent %q skipped", in.Agent, in.Name),
			"orchestrator", r.orch.Name, "workflow", r.wf.Name, "agent", in.Agent))
		r.record(ctx, AuditEvent{Statement: ast.TypeIntent, Agent: in.Agent, Intent: in.Name, Status: AuditSkipped})
		return false
	}

	agentType := agent.EffectiveType()
	ctx, span := r.tracer.Start(ctx, "Executor.Statement",
		trace.WithAttributes(telemetry.IntentAttributes(agent.ID, agentType, in.Name, string(in.Kind))...))
	defer span.End()

	input := r.resolveInput(in)
	started := r.now()
	r.emit(ctx, events.IntentStarted, agent.ID, in.Name, map[string]any{"input": input})

	mode := telemetry.ModeMock
	var (
		output string
		err    error
	)
	ad, found := r.adapters.Lookup(agentType)
	if found && !r.mock {
		mode = telemetry.ModeAdapter
		output, err = ad.Execute(ctx, adapter.Request{
			Agent:  agent,
			Intent: in.Name,
			Input:  input,
			Output: in.OutputValue(),
		})
	} else {
		output = MockOutput(in.Name, input)
	}
	span.SetAttributes(attribute.String(telemetry.AttrMode, mode))

	if err != nil && ctx.Err() != nil {
		span.SetStatus(codes.Error, "cancelled")
		return true
	}

	rec := Record{Intent: in.Name, Agent: agent.ID, Input: input, Kind: string(in.Kind), Mode: mode}
	audit := AuditEvent{
		Statement: ast.TypeIntent,
		Agent:     agent.ID,
		Intent:    in.Name,
		Status:    AuditCompleted,
		Input:     input,
		StartedAt: started,
	}
	if err != nil {
		output = ErrorOutput(in.Name, err)
		rec.Error = err.Error()
		audit.Status = AuditFailed
		audit.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordAdapterError(ctx, agentType, err)
		r.warn(ctx, synerrors.NewWarning(synerrors.WarnAdapterFailure,
			fmt.Sprintf("adapter for %s failed on intent %q: %v", agentType, in.Name, err),
			"agent", agent.ID, "intent", in.Name, "code", string(synerrors.CodeOf(err))))
		r.emit(ctx, events.IntentFailed, agent.ID, in.Name, map[string]any{"error": err.Error()})
	}
	rec.Output = output
	audit.Output = output

	r.flow.Set(OutputKey(agent.ID), output)
	if in.Output != nil && *in.Output != "" {
		r.flow.Set(*in.Output, output)
	}
	r.flow.Set(in.Name, output)
	r.result.Records = append(r.result.Records, rec)

	r.metrics.RecordIntent(ctx, agentType, mode, r.now().Sub(started))
	r.record(ctx, audit)
	if err == nil {
		r.emit(ctx, events.IntentCompleted, agent.ID, in.Name, map[string]any{"input": input, "output": output, "mode": mode})
	}
	r.logger.DebugContext(ctx, "executor.intent.completed",
		"run_id", r.result.RunID,
		"agent_id", agent.ID,
		"intent", in.Name,
		"mode", mode,
		"failed", err != nil)
	return false
}

func (r *runState) connect(ctx context.Context, c *ast.Connect) bool {
	ctx, span := r.tracer.Start(ctx, "Executor.Statement",
		trace.WithAttributes(telemetry.ConnectAttributes(c.From, c.To, c.Options.Async, c.Options.Timeout, c.Options.Transform)...))
	defer span.End()

	if c.Options.Retry != 0 || c.Options.Filter != "" {
		r.warn(ctx, synerrors.NewWarning(synerrors.WarnDeferredOption,
			"connect retry and filter options are stored but not applied",
			"from", c.From, "to", c.To))
	}

	started := r.now()
	value, ok := r.flow.Get(OutputKey(c.From))
	if !ok {
		r.warn(ctx, synerrors.NewWarning(synerrors.WarnMissingSourceOutput,
			fmt.Sprintf("%s has no output yet; nothing propagated to %s", c.From, InputKey(c.To)),
			"from", c.From, "to", c.To, "workflow", r.wf.Name))
		r.metrics.RecordConnect(ctx, false)
		r.record(ctx, AuditEvent{Statement: ast.TypeConnect, Agent: c.To, Status: AuditSkipped, StartedAt: started})
	} else {
		if c.Options.Transform != "" {
			value = r.applyTransform(ctx, c, value)
		}
		r.flow.Set(InputKey(c.To), value)
		r.metrics.RecordConnect(ctx, true)
		r.record(ctx, AuditEvent{
			Statement: ast.TypeConnect,
			Agent:     c.To,
			Status:    AuditPropagated,
			Input:     c.From,
			Output:    value,
			StartedAt: started,
		})
		r.emit(ctx, events.ConnectPropagate, c.To, "", map[string]any{"from": c.From, "to": c.To, "value": value})
	}

	if d := r.pacing(c.Options); d > 0 {
		if err := r.sleep(ctx, d); err != nil {
			return ctx.Err() != nil
		}
	}
	return false
}

func (r *runState) applyTransform(ctx context.Context, c *ast.Connect, value string) string {
	out, found, err := r.transforms.Apply(ctx, c.Options.Transform, value)
	switch {
	case err != nil:
		r.warn(ctx, synerrors.NewWarning(synerrors.WarnTransformFailure,
			fmt.Sprintf("transform %q failed: %v", c.Options.Transform, err),
			"from", c.From, "to", c.To, "transform", c.Options.Transform))
		return value
	case !found:
		r.warn(ctx, synerrors.NewWarning(synerrors.WarnUnknownTransform,
			fmt.Sprintf("transform %q is not registered; value passed through", c.Options.Transform),
			"from", c.From, "to", c.To, "transform", c.Options.Transform))
		return value
	}
	return out
}

// pacing returns the pause after a connect. Only async connects pause; a
// declared timeout caps the pause at timeoutFraction of its duration.
func (r *runState) pacing(o ast.ConnectOptions) time.Duration {
	if !o.Async {
		return 0
	}
	d := r.asyncDelay
	if o.Timeout > 0 {
		limit := time.Duration(float64(o.Timeout) * float64(time.Second) * r.timeoutFraction)
		if limit < d {
			d = limit
		}
	}
	return d
}

func (r *runState) warn(ctx context.Context, w synerrors.Warning) {
	r.result.Warnings = append(r.result.Warnings, w)
	r.metrics.RecordWarning(ctx, w.Code)
	r.logger.WarnContext(ctx, "executor.warning",
		"run_id", r.result.RunID,
		"code", string(w.Code),
		"message", w.Message)
	payload := map[string]any{"code": string(w.Code), "message": w.Message}
	for k, v := range w.Context {
		payload[k] = v
	}
	r.emit(ctx, events.WarningRaised, w.Context["agent"], w.Context["intent"], payload)
}

func (r *runState) emit(ctx context.Context, typ events.Type, agent, intent string, payload map[string]any) {
	ev := events.New(typ, r.result.RunID, payload)
	ev.Orchestrator = r.orch.Name
	ev.Workflow = r.wf.Name
	ev.Agent = agent
	ev.Intent = intent
	r.emitter.Emit(ctx, ev)
}

func (r *runState) record(ctx context.Context, ev AuditEvent) {
	if r.audit == nil {
		return
	}
	ev.RunID = r.result.RunID
	ev.Orchestrator = r.orch.Name
	ev.Workflow = r.wf.Name
	ev.Step = r.step
	if ev.StartedAt.IsZero() {
		ev.StartedAt = r.now()
	}
	ev.StartedAt = auditTime(ev.StartedAt)
	ev.FinishedAt = auditTime(r.now())
	if err := r.audit.Record(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.WarnContext(ctx, "executor.audit.failed", "run_id", r.result.RunID, "error", err)
	}
}
