// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

// InMemoryStore is a VectorStore kept in process. Search ranks points by
// cosine similarity.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	size   uint64
	points map[string]Point
	order  []string
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: map[string]*collection{}}
}

// CreateCollection creates name. Creating an existing collection with the
// same size is a no-op.
func (s *InMemoryStore) CreateCollection(_ context.Context, name string, vectorSize uint64) error {
	if name == "" || vectorSize == 0 {
		return synerrors.New(synerrors.CodeInvalidInput, "collection name and vector size are required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		if c.size != vectorSize {
			return synerrors.Newf(synerrors.CodeInvalidInput, "collection %q has vector size %d", name, c.size)
		}
		return nil
	}
	s.collections[name] = &collection{size: vectorSize, points: map[string]Point{}}
	return nil
}

func (s *InMemoryStore) Upsert(_ context.Context, name string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return synerrors.Newf(synerrors.CodeNotFound, "collection %q not found", name)
	}
	for _, p := range points {
		if uint64(len(p.Vector)) != c.size {
			return synerrors.Newf(synerrors.CodeInvalidInput, "point %q has %d dimensions, want %d", p.ID, len(p.Vector), c.size)
		}
	}
	for _, p := range points {
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = p
	}
	return nil
}

func (s *InMemoryStore) Search(_ context.Context, name string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, synerrors.Newf(synerrors.CodeNotFound, "collection %q not found", name)
	}
	var out []SearchResult
	for _, id := range c.order {
		p := c.points[id]
		score := cosine(vector, p.Vector)
		if score < scoreThreshold {
			continue
		}
		out = append(out, SearchResult{ID: id, Score: score, Point: p})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of points in a collection.
func (s *InMemoryStore) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[name]; ok {
		return len(c.points)
	}
	return 0
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ VectorStore = (*InMemoryStore)(nil)
