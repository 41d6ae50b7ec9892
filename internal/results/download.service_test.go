package results

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"accountwatch/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWritesLocalFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download/success_1.xlsx", r.URL.Path)
		_, _ = w.Write([]byte("result bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	service := New(config.Config{ServerURL: server.URL, ResultsDir: dir})

	path, err := service.Fetch(context.Background(), "success_1.xlsx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "success_1.xlsx"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "result bytes", string(data))
}

func TestFetchRejectsUnsafeNames(t *testing.T) {
	service := New(config.Config{ServerURL: "http://localhost:0", ResultsDir: t.TempDir()})

	_, err := service.Fetch(context.Background(), "../etc/passwd")
	assert.Error(t, err)

	_, err = service.Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchNonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	service := New(config.Config{ServerURL: server.URL, ResultsDir: t.TempDir()})
	_, err := service.Fetch(context.Background(), "missing.xlsx")
	assert.Error(t, err)
}
