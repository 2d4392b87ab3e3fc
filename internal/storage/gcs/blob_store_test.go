package gcs_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/carsearch/internal/storage/gcs"
)

func newTestBlobStore(t *testing.T, cfg gcs.Config, handler http.Handler) *gcs.BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s, err := gcs.New(client, cfg)
	require.NoError(t, err)
	return s
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	_, err = gcs.New(client, gcs.Config{})
	require.Error(t, err)
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		name string
		body string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		mu.Lock()
		name = r.URL.Query().Get("name")
		body = string(raw)
		mu.Unlock()
		assert.Contains(t, r.URL.Path, "/b/site-artifacts/o")
		fmt.Fprintln(w, `{"name": "seo/sitemap.xml", "bucket": "site-artifacts"}`)
	})
	s := newTestBlobStore(t, gcs.Config{Bucket: "site-artifacts", Prefix: "seo", CacheControl: "public, max-age=300"}, handler)

	uri, err := s.PutObject(context.Background(), "sitemap.xml", "application/xml", bytes.NewReader([]byte("<urlset/>")))
	require.NoError(t, err)
	assert.Equal(t, "gs://site-artifacts/seo/sitemap.xml", uri)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "seo/sitemap.xml", name)
	assert.Contains(t, body, "<urlset/>")
	assert.Contains(t, body, "application/xml")
	assert.True(t, strings.Contains(body, "public, max-age=300"))
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	s := newTestBlobStore(t, gcs.Config{Bucket: "site-artifacts"}, handler)

	_, err := s.PutObject(context.Background(), "robots.txt", "text/plain", bytes.NewReader([]byte("User-agent: *")))
	require.Error(t, err)

	_, err = s.PutObject(context.Background(), " ", "text/plain", bytes.NewReader(nil))
	require.Error(t, err)
}
