package pdfindex

import (
	"context"
	"sync"

	"github.com/sells-group/catalog-enricher/internal/ocr"
)

// Cache keeps the most recent index and rebuilds it only when the PDF set
// changes.
type Cache struct {
	mu   sync.Mutex
	ext  ocr.PageExtractor
	opts Options
	cur  *Index
}

// NewCache creates a Cache that builds with ext.
func NewCache(ext ocr.PageExtractor, opts Options) *Cache {
	return &Cache{ext: ext, opts: opts}
}

// Get returns the index for paths, building it if the set differs from the
// cached one. An empty set yields a nil index.
func (c *Cache) Get(ctx context.Context, paths []string) (*Index, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	fp := Fingerprint(paths)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil && c.cur.fingerprint == fp {
		return c.cur, nil
	}
	idx, err := Build(ctx, c.ext, paths, c.opts)
	if err != nil {
		return nil, err
	}
	c.cur = idx
	return idx, nil
}
