package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/carsearch/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		s, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("CreatesMissingDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "out")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "plain")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	tempDir := t.TempDir()
	s, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)

	t.Run("ValidPut", func(t *testing.T) {
		data := []byte("<urlset/>")
		uri, err := s.PutObject(context.Background(), "sitemap.xml", "application/xml", bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(tempDir, "sitemap.xml"), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(tempDir, "sitemap.xml"))
		require.NoError(t, err)
		assert.Equal(t, data, got)
		_, err = os.Stat(filepath.Join(tempDir, "sitemap.xml.tmp"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, err := s.PutObject(context.Background(), "robots.txt", "text/plain", bytes.NewReader([]byte("one")))
		require.NoError(t, err)
		_, err = s.PutObject(context.Background(), "robots.txt", "text/plain", bytes.NewReader([]byte("two")))
		require.NoError(t, err)
		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(tempDir, "robots.txt"))
		require.NoError(t, err)
		assert.Equal(t, "two", string(got))
	})

	t.Run("NestedPath", func(t *testing.T) {
		uri, err := s.PutObject(context.Background(), "a/b/sitemap.xml", "application/xml", bytes.NewReader([]byte("x")))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(tempDir, "a/b/sitemap.xml"), uri)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := s.PutObject(context.Background(), "", "text/plain", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := s.PutObject(context.Background(), "../escape.txt", "text/plain", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})
}
