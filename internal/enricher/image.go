package enricher

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-enricher/internal/resilience"
)

// DefaultMaxImageBytes bounds a product image download.
const DefaultMaxImageBytes = 8 << 20

// ImageFetcher loads product images from URLs or local paths.
type ImageFetcher struct {
	HTTP     *http.Client
	MaxBytes int64
	Retry    resilience.RetryConfig
}

// NewImageFetcher creates a fetcher with a bounded timeout and size.
func NewImageFetcher() *ImageFetcher {
	return &ImageFetcher{
		HTTP:     &http.Client{Timeout: 20 * time.Second},
		MaxBytes: DefaultMaxImageBytes,
		Retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2,
			OnRetry:        resilience.RetryLogger("image", "fetch"),
		},
	}
}

// Fetch loads ref. Anything that is not an image is an error.
func (f *ImageFetcher) Fetch(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, eris.New("enricher: empty image reference")
	}

	var data []byte
	var err error
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		data, err = resilience.DoVal(ctx, f.Retry, func(ctx context.Context) ([]byte, error) {
			return f.download(ctx, ref)
		})
	} else {
		data, err = f.readFile(ref)
	}
	if err != nil {
		return nil, err
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, eris.Errorf("enricher: %s is %s, not an image", ref, mime)
	}
	return &Image{MIMEType: mime, Data: data}, nil
}

func (f *ImageFetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "enricher: image request")
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "enricher: fetch image %s", url)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.FromStatus(resp.StatusCode, eris.Errorf("enricher: fetch image %s: status %d", url, resp.StatusCode))
	}
	return f.readLimited(resp.Body, url)
}

func (f *ImageFetcher) readFile(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enricher: open image %s", path)
	}
	defer fh.Close() //nolint:errcheck
	return f.readLimited(fh, path)
}

func (f *ImageFetcher) readLimited(r io.Reader, ref string) ([]byte, error) {
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, eris.Wrapf(err, "enricher: read image %s", ref)
	}
	if int64(len(data)) > limit {
		return nil, eris.Errorf("enricher: image %s exceeds %d bytes", ref, limit)
	}
	return data, nil
}
