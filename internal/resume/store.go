// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resume

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// ErrClosed is returned by store operations after Close.
var ErrClosed = errors.New("resume store is closed")

// Position records where a viewer left off in one reel. Fraction is the
// play position in [0,1].
type Position struct {
	Fraction  float64   `json:"fraction"`
	Watched   bool      `json:"watched"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists per-(viewer, reel) resume positions.
type Store interface {
	Put(ctx context.Context, viewerID, reelID string, pos *Position) error
	Get(ctx context.Context, viewerID, reelID string) (*Position, error)
	Delete(ctx context.Context, viewerID, reelID string) error
	Close() error
}

// NewStore creates a resume store for the given backend.
// Supported backends: "sqlite" (default when dir is set) and "memory".
func NewStore(backend, dir string) (Store, error) {
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "sqlite":
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(filepath.Join(dir, "resume.sqlite"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown resume store backend: %s (supported: sqlite, memory)", backend)
	}
}

// MemoryStore implements Store using a map (thread-safe).
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Position
}

// NewMemoryStore creates an in-memory resume store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Position)}
}

func (s *MemoryStore) Put(_ context.Context, viewerID, reelID string, pos *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return ErrClosed
	}
	// Copy to avoid race if caller modifies pos later
	clone := *pos
	s.data[compositeKey(viewerID, reelID)] = &clone
	return nil
}

func (s *MemoryStore) Get(_ context.Context, viewerID, reelID string) (*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, ErrClosed
	}
	if val, ok := s.data[compositeKey(viewerID, reelID)]; ok {
		clone := *val
		return &clone, nil
	}
	return nil, nil
}

func (s *MemoryStore) Delete(_ context.Context, viewerID, reelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return ErrClosed
	}
	delete(s.data, compositeKey(viewerID, reelID))
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}

func compositeKey(viewer, reel string) string {
	return viewer + "\x00" + reel
}
