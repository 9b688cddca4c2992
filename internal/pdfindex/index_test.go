package pdfindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-enricher/internal/model"
)

type fakeExtractor struct {
	mu    sync.Mutex
	docs  map[string]model.ParsedPdf
	fail  map[string]bool
	calls int
}

func (f *fakeExtractor) ExtractPages(_ context.Context, path string) (model.ParsedPdf, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[path] {
		return model.ParsedPdf{}, errors.New("corrupt xref table")
	}
	return f.docs[path], nil
}

func doc(name string, pages ...string) model.ParsedPdf {
	d := model.ParsedPdf{FileName: name, Path: "/pdf/" + name}
	for i, text := range pages {
		d.Pages = append(d.Pages, model.PdfPage{Number: i + 1, Text: text})
	}
	return d
}

func TestFindContext(t *testing.T) {
	t.Parallel()

	idx := FromParsed([]model.ParsedPdf{
		doc("listino.pdf",
			"Indice generale del catalogo",
			"Art. ab-123/X  Plafoniera LED 18W IP44",
			"Art. AB123X ripetuto più avanti"),
		doc("tecnico.pdf", "EAN 8001234567890 sospensione 40W"),
	}, DefaultOptions())

	t.Run("sku matches through punctuation and case", func(t *testing.T) {
		t.Parallel()
		ctx, ok := idx.FindContext("AB.123 x", "")
		require.True(t, ok)
		assert.Equal(t, "listino.pdf (p. 2)", ctx.SourceLabel)
		assert.Contains(t, ctx.RawText, "ab-123/X")
		assert.Equal(t, 2, ctx.Page)
	})

	t.Run("ean matches in later file", func(t *testing.T) {
		t.Parallel()
		ctx, ok := idx.FindContext("NOPE-999", "8001234567890")
		require.True(t, ok)
		assert.Equal(t, "tecnico.pdf (p. 1)", ctx.SourceLabel)
	})

	t.Run("short sku never matches", func(t *testing.T) {
		t.Parallel()
		_, ok := idx.FindContext("40", "")
		assert.False(t, ok)
	})

	t.Run("short ean never matches", func(t *testing.T) {
		t.Parallel()
		_, ok := idx.FindContext("", "8001")
		assert.False(t, ok)
	})

	t.Run("no identifiers", func(t *testing.T) {
		t.Parallel()
		_, ok := idx.FindContext("", "")
		assert.False(t, ok)
	})
}

func TestFindBestPage(t *testing.T) {
	t.Parallel()

	idx := FromParsed([]model.ParsedPdf{
		doc("a.pdf", "nothing relevant on this page", "tabella SKU-777 W 10"),
		doc("b.pdf", "SKU-777 again on another file"),
	}, DefaultOptions())

	ref, ok := idx.FindBestPage("sku 777")
	require.True(t, ok)
	assert.Equal(t, PageRef{File: "a.pdf", Path: "/pdf/a.pdf", Page: 2}, ref)
	assert.Equal(t, "a.pdf (p. 2)", ref.Label())

	_, ok = idx.FindBestPage("77")
	assert.False(t, ok)
}

func TestShortPagesAreNotIndexed(t *testing.T) {
	t.Parallel()

	idx := FromParsed([]model.ParsedPdf{doc("a.pdf", "  ABC123 ", "ABC123 long enough page")}, DefaultOptions())
	assert.Equal(t, 1, idx.PageCount())

	ctx, ok := idx.FindContext("ABC123", "")
	require.True(t, ok)
	assert.Equal(t, 2, ctx.Page)
}

func TestNilIndex(t *testing.T) {
	t.Parallel()

	var idx *Index
	_, ok := idx.FindContext("ABC123", "")
	assert.False(t, ok)
	_, ok = idx.FindBestPage("ABC123")
	assert.False(t, ok)
}

func TestBuildSkipsFailedFiles(t *testing.T) {
	t.Parallel()

	ext := &fakeExtractor{
		docs: map[string]model.ParsedPdf{
			"/pdf/one.pdf":   doc("one.pdf", "first catalog has XYZ-900 on it"),
			"/pdf/three.pdf": doc("three.pdf", "third catalog has XYZ-900 too"),
		},
		fail: map[string]bool{"/pdf/two.pdf": true},
	}

	idx, err := Build(context.Background(), ext, []string{"/pdf/one.pdf", "/pdf/two.pdf", "/pdf/three.pdf"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"/pdf/two.pdf"}, idx.Failed())
	require.Len(t, idx.Files(), 2)
	assert.Equal(t, "one.pdf", idx.Files()[0].FileName)
	assert.Equal(t, "three.pdf", idx.Files()[1].FileName)

	ctx, ok := idx.FindContext("XYZ900", "")
	require.True(t, ok)
	assert.Equal(t, "one.pdf (p. 1)", ctx.SourceLabel, "input order wins regardless of extraction order")
}

func TestBuildCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ext := &cancelAwareExtractor{}
	_, err := Build(ctx, ext, []string{"/pdf/a.pdf"}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

type cancelAwareExtractor struct{}

func (cancelAwareExtractor) ExtractPages(ctx context.Context, _ string) (model.ParsedPdf, error) {
	return model.ParsedPdf{}, ctx.Err()
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))

	assert.Equal(t, Fingerprint([]string{a, b}), Fingerprint([]string{b, a}), "order independent")
	assert.NotEqual(t, Fingerprint([]string{a}), Fingerprint([]string{a, b}))

	before := Fingerprint([]string{a})
	require.NoError(t, os.WriteFile(a, []byte("changed content"), 0o644))
	assert.NotEqual(t, before, Fingerprint([]string{a}), "size change")
}

func TestCacheRebuildsOnlyOnChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o644))

	ext := &fakeExtractor{docs: map[string]model.ParsedPdf{
		a: doc("a.pdf", "catalog page with SKU QQQ111"),
		b: doc("b.pdf", "catalog page with SKU WWW222"),
	}}
	c := NewCache(ext, DefaultOptions())

	first, err := c.Get(context.Background(), []string{a})
	require.NoError(t, err)
	second, err := c.Get(context.Background(), []string{a})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, ext.calls)

	third, err := c.Get(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 3, ext.calls)

	none, err := c.Get(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}
