// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory stores intent outputs as embeddings so later runs and tools
// can search what earlier runs produced.
package memory

import "context"

// VectorStore is a vector database.
type VectorStore interface {
	// Upsert adds or updates points in collection.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns up to limit points nearest to vector with a score of at
	// least scoreThreshold, best first.
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error)
	// CreateCollection creates a collection of vectorSize-dimensional vectors.
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
}

// Point is one stored vector.
type Point struct {
	ID        string         `json:"id"`
	Vector    []float32      `json:"vector"`
	Payload   map[string]any `json:"payload"`
	Timestamp int64          `json:"timestamp"`
}

// SearchResult is one search hit.
type SearchResult struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Point Point   `json:"point"`
}

// Embedder converts text to a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Payload keys written by Sink.
const (
	PayloadText         = "text"
	PayloadRunID        = "run_id"
	PayloadOrchestrator = "orchestrator"
	PayloadWorkflow     = "workflow"
	PayloadAgent        = "agent"
	PayloadIntent       = "intent"
)
