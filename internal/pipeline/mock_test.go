package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/catalog-enricher/internal/enricher"
	"github.com/sells-group/catalog-enricher/internal/pdfindex"
)

// --- Enricher Mock ---

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Enrich(ctx context.Context, req enricher.Request) (*enricher.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*enricher.Response), args.Error(1)
}

func (m *mockEnricher) Provider() string { return "mock" }

// funcEnricher serves tests that need per-call behavior.
type funcEnricher struct {
	mu    sync.Mutex
	calls []enricher.Request
	fn    func(ctx context.Context, call int, req enricher.Request) (*enricher.Response, error)
}

func (f *funcEnricher) Enrich(ctx context.Context, req enricher.Request) (*enricher.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	return f.fn(ctx, n, req)
}

func (f *funcEnricher) Provider() string { return "func" }

func (f *funcEnricher) requests() []enricher.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]enricher.Request(nil), f.calls...)
}

// --- PDF Mocks ---

type staticIndex struct {
	idx *pdfindex.Index
	err error
}

func (s staticIndex) Get(context.Context, []string) (*pdfindex.Index, error) {
	return s.idx, s.err
}

type stubRasterizer struct {
	data  []byte
	err   error
	pages []int
}

func (r *stubRasterizer) RasterizePage(_ context.Context, _ string, page int) ([]byte, error) {
	r.pages = append(r.pages, page)
	return r.data, r.err
}

// --- Image Mock ---

type mockImages struct {
	mock.Mock
}

func (m *mockImages) Fetch(ctx context.Context, ref string) (*enricher.Image, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*enricher.Image), args.Error(1)
}
