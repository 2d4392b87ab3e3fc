package allowlist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	mu      sync.Mutex
	paths   []string
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (s *fakeSource) ListPaths(context.Context) ([]string, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]string(nil), s.paths...), nil
}

func (s *fakeSource) AddPath(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, p)
	return nil
}

func (s *fakeSource) RemovePath(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.paths {
		if existing == p {
			s.paths = append(s.paths[:i], s.paths[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestIsWhitelistedNormalizesPaths(t *testing.T) {
	t.Parallel()

	src := &fakeSource{paths: []string{"/cars/p-tokyo", "/cars/m-toyota/"}}
	s := New(src, time.Minute, newClock(), nil)

	require.True(t, s.IsWhitelisted(context.Background(), "/cars/p-tokyo/"))
	require.True(t, s.IsWhitelisted(context.Background(), "/cars/m-toyota"))
	require.False(t, s.IsWhitelisted(context.Background(), "/cars/m-honda/"))
	require.False(t, s.IsWhitelisted(context.Background(), "cars/p-tokyo"))
	require.Equal(t, []string{"/cars/m-toyota/", "/cars/p-tokyo/"}, s.AllPaths(context.Background()))
}

func TestRefreshIsBoundedByInterval(t *testing.T) {
	t.Parallel()

	clk := newClock()
	src := &fakeSource{paths: []string{"/cars/p-tokyo/"}}
	s := New(src, time.Minute, clk, nil)

	for i := 0; i < 5; i++ {
		s.IsWhitelisted(context.Background(), "/cars/p-tokyo/")
	}
	require.Equal(t, int32(1), src.calls.Load())

	clk.Advance(61 * time.Second)
	s.IsWhitelisted(context.Background(), "/cars/p-tokyo/")
	require.Equal(t, int32(2), src.calls.Load())
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	t.Parallel()

	src := &fakeSource{paths: []string{"/cars/p-tokyo/"}, release: make(chan struct{})}
	s := New(src, time.Minute, newClock(), nil)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.IsWhitelisted(context.Background(), "/cars/p-tokyo/")
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(src.release)
	wg.Wait()

	require.Equal(t, int32(1), src.calls.Load())
	for _, ok := range results {
		require.True(t, ok)
	}
}

func TestFailsClosedWithoutSnapshot(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("redis down")}
	s := New(src, time.Minute, newClock(), nil)

	require.False(t, s.IsWhitelisted(context.Background(), "/cars/p-tokyo/"))
	require.Empty(t, s.AllPaths(context.Background()))
}

func TestServesLastKnownGoodAfterFailure(t *testing.T) {
	t.Parallel()

	clk := newClock()
	src := &fakeSource{paths: []string{"/cars/p-tokyo/"}}
	s := New(src, time.Minute, clk, nil)
	require.True(t, s.IsWhitelisted(context.Background(), "/cars/p-tokyo/"))

	src.fail(errors.New("redis down"))
	clk.Advance(2 * time.Minute)
	require.True(t, s.IsWhitelisted(context.Background(), "/cars/p-tokyo/"))
	require.Equal(t, int32(2), src.calls.Load())
}

func TestAddAndRemoveInvalidateCache(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	s := New(src, time.Hour, newClock(), nil)
	require.False(t, s.IsWhitelisted(context.Background(), "/cars/m-toyota/"))

	norm, err := s.Add(context.Background(), " /cars/m-toyota ")
	require.NoError(t, err)
	require.Equal(t, "/cars/m-toyota/", norm)
	require.True(t, s.IsWhitelisted(context.Background(), "/cars/m-toyota/"))

	require.NoError(t, s.Remove(context.Background(), "/cars/m-toyota/"))
	require.False(t, s.IsWhitelisted(context.Background(), "/cars/m-toyota/"))

	_, err = s.Add(context.Background(), "/cars/../admin")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	valid := map[string]string{
		"/":               "/",
		"/cars":           "/cars/",
		"/cars/p-tokyo/":  "/cars/p-tokyo/",
		" /cars/p-tokyo ": "/cars/p-tokyo/",
	}
	for in, want := range valid {
		got, err := NormalizePath(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "cars/", "/cars//p-tokyo/", "/cars/?page=2", "/cars/./x", "/a#b"} {
		_, err := NormalizePath(in)
		require.ErrorIs(t, err, ErrInvalidPath, in)
	}
}
