package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	ok := httpRequestsTotal.WithLabelValues("GET", "200")
	notFound := httpRequestsTotal.WithLabelValues("GET", "404")
	okBefore := testutil.ToFloat64(ok)
	notFoundBefore := testutil.ToFloat64(notFound)

	for _, path := range []string{"/test", "/missing"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.InDelta(t, okBefore+1, testutil.ToFloat64(ok), 0)
	require.InDelta(t, notFoundBefore+1, testutil.ToFloat64(notFound), 0)
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}

func TestObserveHelpers(t *testing.T) {
	directive := seoDirectivesTotal.WithLabelValues("maker", "ok", "index,follow")
	before := testutil.ToFloat64(directive)
	ObserveDirective("maker", "ok", "index,follow")
	require.InDelta(t, before+1, testutil.ToFloat64(directive), 0)

	flips := indexTransitionsTotal.WithLabelValues("index")
	before = testutil.ToFloat64(flips)
	ObserveIndexTransition("index")
	require.InDelta(t, before+1, testutil.ToFloat64(flips), 0)

	refresh := snapshotRefreshTotal.WithLabelValues("allowlist", "error")
	before = testutil.ToFloat64(refresh)
	ObserveRefresh("allowlist", "error")
	require.InDelta(t, before+1, testutil.ToFloat64(refresh), 0)

	fallback := storeFallbacksTotal.WithLabelValues("state", "fail_closed")
	before = testutil.ToFloat64(fallback)
	ObserveFallback("state", "fail_closed")
	require.InDelta(t, before+1, testutil.ToFloat64(fallback), 0)

	before = testutil.ToFloat64(rateLimitedTotal)
	ObserveRateLimited()
	require.InDelta(t, before+1, testutil.ToFloat64(rateLimitedTotal), 0)

	ObserveSearch(12)
	require.Equal(t, 1, testutil.CollectAndCount(searchResultSize))
}

func TestInitTracerProvider(t *testing.T) {
	tp, err := InitTracerProvider(context.Background(), "carsearch-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := Tracer().Start(context.Background(), "smoke")
	require.True(t, span.SpanContext().IsValid())
	span.End()
}
