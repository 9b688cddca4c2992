// Package pdfindex searches catalog PDF pages for product identifiers.
//
// An Index is built once per PDF set and is read-only afterwards, so it can
// be shared by any number of readers without locking.
package pdfindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/ocr"
	"github.com/sells-group/catalog-enricher/internal/textnorm"
)

// Options configures matching and extraction.
type Options struct {
	// MinSKULen and MinEANLen are the normalized length floors below which
	// an identifier never matches.
	MinSKULen int
	MinEANLen int
	// MinPageChars drops pages whose trimmed text is shorter.
	MinPageChars int
	// Concurrency bounds parallel extraction.
	Concurrency int
}

// DefaultOptions returns the standard matching floors.
func DefaultOptions() Options {
	return Options{MinSKULen: 3, MinEANLen: 5, MinPageChars: 10, Concurrency: 4}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinSKULen <= 0 {
		o.MinSKULen = d.MinSKULen
	}
	if o.MinEANLen <= 0 {
		o.MinEANLen = d.MinEANLen
	}
	if o.MinPageChars < 0 {
		o.MinPageChars = 0
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	return o
}

type page struct {
	file       string
	path       string
	number     int
	normalized string
	original   string
}

// Index holds the normalized text of every indexed page in file then page
// order.
type Index struct {
	opts        Options
	pages       []page
	files       []model.ParsedPdf
	failed      []string
	fingerprint string
}

// Context is the page text found for a product.
type Context struct {
	RawText     string
	SourceLabel string
	File        string
	Path        string
	Page        int
}

// PageRef identifies one page of one file.
type PageRef struct {
	File string
	Path string
	Page int
}

// Label renders the human label for the page.
func (r PageRef) Label() string {
	return pageLabel(r.File, r.Page)
}

func pageLabel(file string, n int) string {
	return fmt.Sprintf("%s (p. %d)", file, n)
}

// Build extracts every PDF and indexes its pages in input order. Files that
// fail to extract are logged and left out; Build only fails when ctx is
// cancelled.
func Build(ctx context.Context, ext ocr.PageExtractor, paths []string, opts Options) (*Index, error) {
	opts = opts.withDefaults()
	log := zap.L().With(zap.Int("pdfs", len(paths)))

	parsed := make([]*model.ParsedPdf, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			doc, err := ext.ExtractPages(gctx, path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("pdfindex: extraction failed, skipping file",
					zap.String("path", path), zap.Error(err))
				return nil
			}
			parsed[i] = &doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := FromParsed(nil, opts)
	for i, doc := range parsed {
		if doc == nil {
			idx.failed = append(idx.failed, paths[i])
			continue
		}
		idx.add(*doc)
	}
	idx.fingerprint = Fingerprint(paths)

	log.Info("pdfindex: built",
		zap.Int("files", len(idx.files)),
		zap.Int("failed", len(idx.failed)),
		zap.Int("pages", len(idx.pages)))
	return idx, nil
}

// FromParsed indexes already-extracted documents.
func FromParsed(docs []model.ParsedPdf, opts Options) *Index {
	idx := &Index{opts: opts.withDefaults()}
	for _, doc := range docs {
		idx.add(doc)
	}
	return idx
}

func (idx *Index) add(doc model.ParsedPdf) {
	idx.files = append(idx.files, doc)
	for _, p := range doc.Pages {
		if len(strings.TrimSpace(p.Text)) < idx.opts.MinPageChars {
			continue
		}
		idx.pages = append(idx.pages, page{
			file:       doc.FileName,
			path:       doc.Path,
			number:     p.Number,
			normalized: textnorm.Normalize(p.Text),
			original:   p.Text,
		})
	}
}

// FindContext returns the first page, in file then page order, whose
// normalized text contains the normalized SKU or EAN.
func (idx *Index) FindContext(sku, ean string) (Context, bool) {
	if idx == nil {
		return Context{}, false
	}
	for _, p := range idx.pages {
		if textnorm.Contains(p.normalized, sku, idx.opts.MinSKULen) ||
			textnorm.Contains(p.normalized, ean, idx.opts.MinEANLen) {
			return Context{
				RawText:     p.original,
				SourceLabel: pageLabel(p.file, p.number),
				File:        p.file,
				Path:        p.path,
				Page:        p.number,
			}, true
		}
	}
	return Context{}, false
}

// FindBestPage returns the first page mentioning the SKU, for visual
// re-analysis.
func (idx *Index) FindBestPage(sku string) (PageRef, bool) {
	if idx == nil {
		return PageRef{}, false
	}
	for _, p := range idx.pages {
		if textnorm.Contains(p.normalized, sku, idx.opts.MinSKULen) {
			return PageRef{File: p.file, Path: p.path, Page: p.number}, true
		}
	}
	return PageRef{}, false
}

// Files returns the successfully parsed documents.
func (idx *Index) Files() []model.ParsedPdf { return idx.files }

// Failed returns the paths that could not be parsed.
func (idx *Index) Failed() []string { return idx.failed }

// PageCount returns the number of indexed pages.
func (idx *Index) PageCount() int { return len(idx.pages) }

// Fingerprint returns the identity of the PDF set the index was built from.
func (idx *Index) Fingerprint() string { return idx.fingerprint }

// Fingerprint hashes the sorted paths with their size and modification time.
// Unreadable paths contribute their name only.
func Fingerprint(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, p := range sorted {
		fmt.Fprintf(h, "%s\x00", p)
		if st, err := os.Stat(p); err == nil {
			fmt.Fprintf(h, "%d\x00%d\x00", st.Size(), st.ModTime().UnixNano())
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
