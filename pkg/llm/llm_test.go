// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

func TestScriptedMockProvider(t *testing.T) {
	boom := errors.New("boom")
	mock := NewScriptedMockProvider("first", "second")
	mock.Errs = []error{boom}

	if _, err := mock.Chat(context.Background(), ChatRequest{Model: "m"}); !errors.Is(err, boom) {
		t.Fatalf("expected scripted error, got %v", err)
	}
	resp, err := mock.Chat(context.Background(), ChatRequest{Model: "m"})
	if err != nil || resp.Content != "first" {
		t.Fatalf("Chat = %v, %v; want first", resp, err)
	}
	resp, _ = mock.Chat(context.Background(), ChatRequest{})
	if resp.Content != "second" {
		t.Fatalf("expected second, got %q", resp.Content)
	}
	if _, err := mock.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected an error once responses are exhausted")
	}
	if mock.CallCount() != 4 {
		t.Fatalf("CallCount = %d, want 4", mock.CallCount())
	}
}

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Stream || req.Model != "llama3.1" || req.Options["temperature"] != 0.2 {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Message:         Message{Role: RoleAssistant, Content: "echo: " + req.Messages[0].Content},
			Done:            true,
			EvalCount:       3,
			PromptEvalCount: 4,
		})
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	resp, err := p.Chat(context.Background(), ChatRequest{
		Model:       "llama3.1",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "echo: hi" || resp.Usage.TotalTokens != 7 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOllamaChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL).Chat(context.Background(), ChatRequest{Model: "m"})
	se := synerrors.AsSynaiError(err)
	if se == nil || se.Code != synerrors.CodeGeneration {
		t.Fatalf("expected GENERATION_ERROR, got %v", err)
	}
	if !se.Recoverable {
		t.Fatal("5xx answers should be recoverable")
	}
}
