// Package fetcher stages batch input files: remote references are downloaded
// over HTTP(S) or FTP and zip bundles of PDF catalogs are unpacked, so the
// rest of the pipeline only ever reads local paths.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-enricher/internal/config"
	"github.com/sells-group/catalog-enricher/internal/resilience"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Stager turns input references into local files.
type Stager struct {
	HTTP Fetcher
	FTP  Fetcher
	// Dir receives downloads and unpacked bundles.
	Dir string
}

// NewStager builds a Stager from config. An empty fetch.dir stages into a
// fresh temp directory.
func NewStager(cfg config.FetchConfig) (*Stager, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	dir := cfg.Dir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "catalog-enricher-")
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create staging dir")
		}
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fetcher: create staging dir %s", dir)
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    cfg.MaxRetries + 1,
		InitialBackoff: time.Second,
		MaxBackoff:     15 * time.Second,
		Multiplier:     2,
	}
	return &Stager{
		HTTP: NewHTTPFetcher(HTTPOptions{UserAgent: cfg.UserAgent, Timeout: timeout, Retry: retry}),
		FTP:  NewFTPFetcher(FTPOptions{Timeout: timeout}),
		Dir:  dir,
	}, nil
}

// IsRemote reports whether ref is a URL the Stager downloads.
func IsRemote(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "ftp://")
}

// Stage returns a local path for ref. Local paths must exist and are
// returned unchanged. Remote files are downloaded once per stager dir.
func (s *Stager) Stage(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", eris.New("fetcher: empty input reference")
	}
	if !IsRemote(ref) {
		if _, err := os.Stat(ref); err != nil {
			return "", eris.Wrapf(err, "fetcher: input %s", ref)
		}
		return ref, nil
	}

	dest := filepath.Join(s.Dir, stagedName(ref))
	if st, err := os.Stat(dest); err == nil && st.Size() > 0 {
		return dest, nil
	}

	f := s.HTTP
	if strings.HasPrefix(strings.ToLower(ref), "ftp://") {
		f = s.FTP
	}
	if f == nil {
		return "", eris.Errorf("fetcher: no fetcher for %s", ref)
	}

	start := time.Now()
	n, err := f.DownloadToFile(ctx, ref, dest)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: download %s", ref)
	}
	zap.L().Info("fetcher: input staged",
		zap.String("ref", ref),
		zap.String("path", dest),
		zap.Int64("bytes", n),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return dest, nil
}

// StagePDFs stages every catalog reference in order. A .zip expands to the
// PDFs it contains.
func (s *Stager) StagePDFs(ctx context.Context, refs []string) ([]string, error) {
	var out []string
	for _, ref := range refs {
		local, err := s.Stage(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(filepath.Ext(local), ".zip") {
			out = append(out, local)
			continue
		}
		dest := filepath.Join(s.Dir, strings.TrimSuffix(filepath.Base(local), filepath.Ext(local)))
		pdfs, err := ExtractPDFs(local, dest)
		if err != nil {
			return nil, err
		}
		out = append(out, pdfs...)
	}
	return out, nil
}

// stagedName keeps the remote base name for readable paths, prefixed by a
// hash of the full reference so equal names from different hosts differ.
func stagedName(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	prefix := hex.EncodeToString(sum[:])[:12]

	base := ""
	if u, err := url.Parse(ref); err == nil {
		base = path.Base(u.Path)
	}
	if base == "" || base == "." || base == "/" {
		base = "download"
	}
	return prefix + "-" + base
}
