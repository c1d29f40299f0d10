// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/events"
)

// DefaultCollection is the collection intent outputs go to.
const DefaultCollection = "synai_outputs"

// Entry is one text to remember.
type Entry struct {
	RunID        string
	Orchestrator string
	Workflow     string
	Agent        string
	Intent       string
	Text         string
}

// Sink embeds texts and stores them in a vector store. It implements
// events.Emitter so it can listen to executor runs directly.
type Sink struct {
	store      VectorStore
	embedder   Embedder
	collection string
	threshold  float32
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	mu    sync.Mutex
	ready bool
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithCollection sets the target collection.
func WithCollection(name string) SinkOption {
	return func(s *Sink) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithScoreThreshold sets the minimum score Recall returns.
func WithScoreThreshold(t float32) SinkOption {
	return func(s *Sink) { s.threshold = t }
}

// WithLogger sets the logger used for failed event writes.
func WithLogger(l *slog.Logger) SinkOption {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDFunc overrides the point id generator. Qdrant accepts UUIDs only.
func WithIDFunc(fn func() string) SinkOption {
	return func(s *Sink) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewSink creates a Sink.
func NewSink(store VectorStore, embedder Embedder, opts ...SinkOption) (*Sink, error) {
	if store == nil || embedder == nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "vector store and embedder are required", nil)
	}
	s := &Sink{
		store:      store,
		embedder:   embedder,
		collection: DefaultCollection,
		threshold:  0.2,
		logger:     slog.Default(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Collection returns the collection name.
func (s *Sink) Collection() string { return s.collection }

// Ensure creates the collection with the embedder's dimension. A creation
// failure is tolerated when the collection already answers searches.
func (s *Sink) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, "dimension probe")
	if err != nil {
		return synerrors.New(synerrors.CodeGeneration, "embedder probe failed", err)
	}
	if err := s.store.CreateCollection(ctx, s.collection, uint64(len(vec))); err != nil {
		if _, searchErr := s.store.Search(ctx, s.collection, vec, 1, 0); searchErr != nil {
			return synerrors.New(synerrors.CodeInternal, "create collection", err).
				WithContext("collection", s.collection)
		}
	}
	s.ready = true
	return nil
}

// Remember embeds e.Text and stores it. Empty texts are ignored.
func (s *Sink) Remember(ctx context.Context, e Entry) error {
	if e.Text == "" {
		return nil
	}
	if err := s.Ensure(ctx); err != nil {
		return err
	}
	vec, err := s.embedder.Embed(ctx, e.Text)
	if err != nil {
		return synerrors.New(synerrors.CodeGeneration, "embed output", err).
			WithContext("agent", e.Agent).
			WithContext("intent", e.Intent)
	}
	now := s.now()
	payload := map[string]any{
		PayloadText:   e.Text,
		PayloadAgent:  e.Agent,
		PayloadIntent: e.Intent,
	}
	for k, v := range map[string]string{
		PayloadRunID:        e.RunID,
		PayloadOrchestrator: e.Orchestrator,
		PayloadWorkflow:     e.Workflow,
	} {
		if v != "" {
			payload[k] = v
		}
	}
	return s.store.Upsert(ctx, s.collection, []Point{{
		ID:        s.newID(),
		Vector:    vec,
		Payload:   payload,
		Timestamp: now.Unix(),
	}})
}

// Recall returns the stored texts closest to query, best first.
func (s *Sink) Recall(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if err := s.Ensure(ctx); err != nil {
		return nil, err
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, synerrors.New(synerrors.CodeGeneration, "embed query", err)
	}
	if limit <= 0 {
		limit = 5
	}
	return s.store.Search(ctx, s.collection, vec, limit, s.threshold)
}

// Emit remembers the output of every completed intent. Failures are logged;
// they never reach the run.
func (s *Sink) Emit(ctx context.Context, ev events.Event) {
	if ev.Type != events.IntentCompleted {
		return
	}
	out, _ := ev.Payload["output"].(string)
	err := s.Remember(ctx, Entry{
		RunID:        ev.RunID,
		Orchestrator: ev.Orchestrator,
		Workflow:     ev.Workflow,
		Agent:        ev.Agent,
		Intent:       ev.Intent,
		Text:         out,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "memory.remember.failed",
			"run_id", ev.RunID,
			"agent_id", ev.Agent,
			"intent", ev.Intent,
			"error", err)
	}
}

var _ events.Emitter = (*Sink)(nil)
