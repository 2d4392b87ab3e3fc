package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/JakeFAU/carsearch/internal/store"
)

// AllowlistSource is a mutable in-memory path set.
type AllowlistSource struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

// NewAllowlistSource seeds the set with paths.
func NewAllowlistSource(paths ...string) *AllowlistSource {
	s := &AllowlistSource{paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		s.paths[p] = struct{}{}
	}
	return s
}

// ListPaths returns the paths in sorted order.
func (s *AllowlistSource) ListPaths(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out, nil
}

// AddPath inserts path. Adding an existing path is a no-op.
func (s *AllowlistSource) AddPath(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[path] = struct{}{}
	return nil
}

// RemovePath deletes path or returns store.ErrNotFound.
func (s *AllowlistSource) RemovePath(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[path]; !ok {
		return store.ErrNotFound
	}
	delete(s.paths, path)
	return nil
}
