// Package allowlist caches the set of listing paths that may be indexed.
package allowlist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/carsearch/internal/store"
	"github.com/JakeFAU/carsearch/internal/telemetry"
)

// DefaultRefresh bounds how often the backing source is read.
const DefaultRefresh = 60 * time.Second

// ErrInvalidPath is returned for paths that cannot be allowlisted.
var ErrInvalidPath = errors.New("allowlist: invalid path")

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Store is a time-boxed cache in front of a store.AllowlistSource. It fails
// closed: with no successful load nothing is allowlisted, and after a
// failed refresh the previous snapshot keeps being served.
type Store struct {
	source  store.AllowlistSource
	refresh time.Duration
	clock   Clock
	logger  *zap.Logger

	group singleflight.Group

	mu        sync.RWMutex
	set       map[string]struct{}
	sorted    []string
	loaded    bool
	fetchedAt time.Time
}

type snapshot struct {
	set    map[string]struct{}
	sorted []string
}

// New builds a Store. refresh <= 0 uses DefaultRefresh.
func New(source store.AllowlistSource, refresh time.Duration, clock Clock, logger *zap.Logger) *Store {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		source:  source,
		refresh: refresh,
		clock:   clock,
		logger:  logger,
	}
}

// IsWhitelisted reports whether path may be indexed.
func (s *Store) IsWhitelisted(ctx context.Context, path string) bool {
	norm, err := NormalizePath(path)
	if err != nil {
		return false
	}
	_, ok := s.current(ctx).set[norm]
	return ok
}

// AllPaths returns every allowlisted path, sorted.
func (s *Store) AllPaths(ctx context.Context) []string {
	return slices.Clone(s.current(ctx).sorted)
}

// Add allowlists path in the backing source and invalidates the cache.
func (s *Store) Add(ctx context.Context, path string) (string, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return "", err
	}
	if err := s.source.AddPath(ctx, norm); err != nil {
		return "", fmt.Errorf("add allowlist path: %w", err)
	}
	s.invalidate()
	return norm, nil
}

// Remove deletes path from the backing source and invalidates the cache.
func (s *Store) Remove(ctx context.Context, path string) error {
	norm, err := NormalizePath(path)
	if err != nil {
		return err
	}
	if err := s.source.RemovePath(ctx, norm); err != nil {
		return fmt.Errorf("remove allowlist path: %w", err)
	}
	s.invalidate()
	return nil
}

// Refresh reloads the snapshot from the source.
func (s *Store) Refresh(ctx context.Context) error {
	paths, err := s.source.ListPaths(ctx)
	if err != nil {
		telemetry.ObserveRefresh("allowlist", "error")
		return fmt.Errorf("list allowlist: %w", err)
	}
	telemetry.ObserveRefresh("allowlist", "ok")
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		norm, err := NormalizePath(p)
		if err != nil {
			s.logger.Warn("skipping invalid allowlist entry", zap.String("path", p))
			continue
		}
		set[norm] = struct{}{}
	}
	sorted := make([]string, 0, len(set))
	for p := range set {
		sorted = append(sorted, p)
	}
	slices.Sort(sorted)

	s.mu.Lock()
	s.set, s.sorted = set, sorted
	s.loaded = true
	s.fetchedAt = s.clock.Now()
	s.mu.Unlock()
	return nil
}

func (s *Store) current(ctx context.Context) snapshot {
	s.mu.RLock()
	snap := snapshot{set: s.set, sorted: s.sorted}
	fresh := s.loaded && s.clock.Now().Sub(s.fetchedAt) < s.refresh
	s.mu.RUnlock()
	if fresh {
		return snap
	}

	v, _, _ := s.group.Do("refresh", func() (any, error) {
		if err := s.Refresh(context.WithoutCancel(ctx)); err != nil {
			return s.fallback(err), nil
		}
		s.mu.RLock()
		defer s.mu.RUnlock()
		return snapshot{set: s.set, sorted: s.sorted}, nil
	})
	out, _ := v.(snapshot)
	return out
}

func (s *Store) fallback(err error) snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loaded {
		telemetry.ObserveFallback("allowlist", "last_known_good")
		s.logger.Warn("allowlist refresh failed; serving last snapshot", zap.Error(err))
		return snapshot{set: s.set, sorted: s.sorted}
	}
	telemetry.ObserveFallback("allowlist", "fail_closed")
	s.logger.Error("allowlist unavailable; nothing is allowlisted", zap.Error(err))
	return snapshot{}
}

func (s *Store) invalidate() {
	s.mu.Lock()
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

// NormalizePath puts a site-relative path into trailing-slash form. Query
// strings, fragments, empty segments, and dot segments are rejected.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") || strings.ContainsAny(p, "?#") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "/", nil
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return "/" + trimmed + "/", nil
}
