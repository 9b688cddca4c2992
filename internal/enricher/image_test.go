package enricher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-enricher/internal/resilience"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func testFetcher() *ImageFetcher {
	f := NewImageFetcher()
	f.Retry = resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return f
}

func TestFetchURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	img, err := testFetcher().Fetch(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, pngHeader, img.Data)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchRejects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/html":
			_, _ = w.Write([]byte("<html><body>nope</body></html>"))
		default:
			_, _ = w.Write(append(pngHeader, make([]byte, 64)...))
		}
	}))
	defer srv.Close()

	f := testFetcher()
	f.MaxBytes = 32

	for _, path := range []string{"/missing", "/html", "/big"} {
		_, err := f.Fetch(context.Background(), srv.URL+path)
		assert.Error(t, err, path)
	}
	_, err := f.Fetch(context.Background(), "  ")
	assert.Error(t, err)
}

func TestFetchLocalFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o644))

	img, err := testFetcher().Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	_, err = testFetcher().Fetch(context.Background(), filepath.Join(t.TempDir(), "none.png"))
	assert.Error(t, err)
}
