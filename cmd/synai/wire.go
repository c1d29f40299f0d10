// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"

	"github.com/jllopis/synai/pkg/adapter"
	"github.com/jllopis/synai/pkg/config"
	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/events"
	"github.com/jllopis/synai/pkg/executor"
	"github.com/jllopis/synai/pkg/llm"
	"github.com/jllopis/synai/pkg/memory"
	"github.com/jllopis/synai/pkg/memory/ollama"
	"github.com/jllopis/synai/pkg/memory/qdrant"
	"github.com/jllopis/synai/pkg/natsbus"
	"github.com/jllopis/synai/pkg/resilience"
	"github.com/jllopis/synai/pkg/tools"
	"github.com/jllopis/synai/pkg/transform"
)

// runOptions are the run command flags layered over the configuration.
type runOptions struct {
	mock      bool
	auditPath string
	natsURL   string
	embedded  bool
	memory    bool
	provider  llm.Provider
	emitters  []events.Emitter
}

// session owns the collaborators of one run and closes them in reverse
// order.
type session struct {
	executor *executor.Executor
	audit    executor.AuditStore
	closers  []func() error
}

func (s *session) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) newSession(ctx context.Context, opts runOptions) (_ *session, err error) {
	cfg := a.cfg
	s := &session{}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	mock := opts.mock || cfg.Executor.Mock
	adapters := adapter.NewRegistry()
	if !mock {
		if err := a.registerLLM(adapters, cfg.LLM, opts.provider); err != nil {
			return nil, err
		}
		if err := a.registerTools(ctx, s, adapters, cfg.Tools); err != nil {
			return nil, err
		}
	}

	emitters := events.Multi(append([]events.Emitter(nil), opts.emitters...))
	natsURL := opts.natsURL
	if natsURL == "" {
		natsURL = cfg.Events.NATSURL
	}
	if natsURL != "" || opts.embedded || cfg.Events.Embedded {
		em, err := a.natsEmitter(s, natsURL, cfg.Events.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		emitters = append(emitters, em)
	}
	if opts.memory || cfg.Memory.Enabled {
		sink, err := a.memorySink(s, cfg.Memory)
		if err != nil {
			return nil, err
		}
		emitters = append(emitters, sink)
	}

	auditPath := opts.auditPath
	if auditPath == "" {
		auditPath = cfg.Audit.SQLitePath
	}
	if auditPath != "" {
		store, err := executor.OpenSQLiteAuditStore(auditPath)
		if err != nil {
			return nil, err
		}
		s.audit = store
		s.onClose(store.Close)
	}

	s.executor = executor.New(
		executor.WithAdapters(adapters),
		executor.WithTransforms(transform.NewRegistry(transform.WithLuaDir(cfg.Transforms.LuaDir))),
		executor.WithMock(mock),
		executor.WithEmitter(emitters),
		executor.WithAuditStore(s.audit),
		executor.WithLogger(a.logger),
		executor.WithAsyncDelay(cfg.Executor.AsyncDelay),
		executor.WithTimeoutFraction(cfg.Executor.TimeoutFraction),
	)
	return s, nil
}

// registerLLM binds the LLM agent type. The "mock" provider leaves it
// unbound so LLM agents produce mock outputs.
func (a *app) registerLLM(r *adapter.Registry, cfg config.LLMConfig, provider llm.Provider) error {
	if provider == nil {
		switch cfg.Provider {
		case "mock", "":
			return nil
		case "ollama":
			provider = llm.NewOllama(cfg.BaseURL)
		default:
			return synerrors.Newf(synerrors.CodeInvalidInput, "unknown llm provider %q", cfg.Provider)
		}
	}
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry = retry.WithMaxAttempts(cfg.MaxAttempts)
	}
	if cfg.RetryDelay > 0 {
		retry = retry.WithInitialDelay(cfg.RetryDelay)
	}
	llmAdapter := adapter.NewLLMAdapter(
		adapter.NewChatGenerator(provider),
		adapter.WithDefaultModel(cfg.Model),
		adapter.WithRetry(retry),
		adapter.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "llm"})),
		adapter.WithLogger(a.logger),
	)
	return r.Register("LLM", llmAdapter)
}

// registerTools starts the configured MCP servers and binds the TOOL agent
// type to their tools.
func (a *app) registerTools(ctx context.Context, s *session, r *adapter.Registry, cfg config.ToolsConfig) error {
	if len(cfg.MCP) == 0 {
		return nil
	}
	reg, err := tools.NewRegistry()
	if err != nil {
		return err
	}
	for _, srv := range cfg.MCP {
		var opts []tools.MCPOption
		if srv.Timeout > 0 {
			opts = append(opts, tools.WithMCPTimeout(srv.Timeout))
		}
		if srv.Retries > 0 || srv.RetryBackoff > 0 {
			opts = append(opts, tools.WithMCPRetry(srv.Retries, srv.RetryBackoff))
		}
		if srv.CacheTTL > 0 {
			opts = append(opts, tools.WithMCPToolCacheTTL(srv.CacheTTL))
		}
		c, err := tools.DialStdio(ctx, srv.Command, srv.Env, srv.Args, opts...)
		if err != nil {
			return err
		}
		s.onClose(c.Close)
		if err := tools.RegisterMCP(ctx, reg, c); err != nil {
			return err
		}
		a.logger.Info("cli.mcp.registered", "server", srv.Name, "tools", reg.Names())
	}
	return r.Register("TOOL", adapter.NewToolAdapter(reg))
}

func (a *app) natsEmitter(s *session, url, prefix string) (events.Emitter, error) {
	var (
		client *natsbus.Client
		err    error
	)
	if url == "" {
		bus, err := natsbus.NewBus(natsbus.BusConfig{Port: natsbus.RandomPort})
		if err != nil {
			return nil, err
		}
		s.onClose(func() error { bus.Close(); return nil })
		client, err = natsbus.NewClient(bus)
		if err != nil {
			return nil, err
		}
		a.logger.Info("cli.nats.embedded", "url", bus.ClientURL())
	} else {
		client, err = natsbus.Connect(url)
		if err != nil {
			return nil, err
		}
	}
	s.onClose(func() error {
		err := client.Flush()
		client.Close()
		return err
	})
	return natsbus.NewEmitter(client, prefix, a.logger), nil
}

func (a *app) memorySink(s *session, cfg config.MemoryConfig) (*memory.Sink, error) {
	var store memory.VectorStore
	switch cfg.Backend {
	case "inmemory":
		store = memory.NewInMemoryStore()
	case "qdrant", "":
		qs, err := qdrant.New(cfg.QdrantAddr)
		if err != nil {
			return nil, err
		}
		s.onClose(qs.Close)
		store = qs
	default:
		return nil, synerrors.Newf(synerrors.CodeInvalidInput, "unknown memory backend %q", cfg.Backend)
	}
	return memory.NewSink(store,
		ollama.NewEmbedder(cfg.EmbedderBaseURL, cfg.EmbedderModel),
		memory.WithCollection(cfg.Collection),
		memory.WithLogger(a.logger))
}
