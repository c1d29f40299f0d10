// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"

	synerrors "github.com/jllopis/synai/pkg/errors"
	"github.com/jllopis/synai/pkg/llm"
)

// ChatGenerator implements Generator over a chat provider.
type ChatGenerator struct {
	provider llm.Provider
	system   string
	embedder Embedder
}

// ChatOption configures a ChatGenerator.
type ChatOption func(*ChatGenerator)

// WithSystemPrompt prepends a system message to every request.
func WithSystemPrompt(s string) ChatOption {
	return func(g *ChatGenerator) { g.system = s }
}

// WithEmbedder gives the generator an embedding capability.
func WithEmbedder(e Embedder) ChatOption {
	return func(g *ChatGenerator) { g.embedder = e }
}

// NewChatGenerator wraps p.
func NewChatGenerator(p llm.Provider, opts ...ChatOption) *ChatGenerator {
	g := &ChatGenerator{provider: p}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate sends prompt as a single user message. A "temperature" option is
// lifted into the request; the rest are passed as provider options.
func (g *ChatGenerator) Generate(ctx context.Context, prompt, model string, opts map[string]any) (string, error) {
	req := llm.ChatRequest{Model: model}
	if g.system != "" {
		req.Messages = append(req.Messages, llm.Message{Role: llm.RoleSystem, Content: g.system})
	}
	req.Messages = append(req.Messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	for k, v := range opts {
		if k == PropertyTemperature {
			if f, ok := v.(float64); ok {
				req.Temperature = f
			}
			continue
		}
		if req.Options == nil {
			req.Options = map[string]any{}
		}
		req.Options[k] = v
	}

	resp, err := g.provider.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", synerrors.New(synerrors.CodeGeneration, "provider returned no response", nil)
	}
	return resp.Content, nil
}

// Embed delegates to the configured embedder.
func (g *ChatGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	if g.embedder == nil {
		return nil, ErrEmbeddingUnsupported
	}
	return g.embedder.Embed(ctx, text)
}
