package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-enricher/internal/config"
	"github.com/sells-group/catalog-enricher/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testBatch() *model.Batch {
	b := model.NewBatch("listino-2026", model.DefaultFields())
	b.Inputs = model.BatchInputs{
		BaseFile: "base.xlsx",
		PDFs:     []string{"catalogo.pdf"},
		Mapping:  map[string]string{"f7": "Potenza"},
		Brand:    "Acme",
	}
	done := model.NewProduct(1, "ABC-1", "8001234567890")
	done.SetField("WATT", "12W", model.SourceInfo{
		Source:     "PDF (Pag 3)",
		SourceType: model.SourcePDF,
		Confidence: model.ConfidenceHigh,
		Status:     model.StatusStrict,
	})
	done.Status = model.ProductCompleted
	failed := model.NewProduct(2, "ABC-2", "")
	failed.Fail("status 503")
	b.Products = []*model.ProcessedProduct{done, failed, model.NewProduct(3, "ABC-3", "")}
	return b
}

func TestSQLite_SaveAndGetBatch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	b := testBatch()

	require.NoError(t, st.SaveBatch(ctx, b))

	got, err := st.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Name, got.Name)
	assert.Equal(t, b.Inputs, got.Inputs)
	assert.Len(t, got.Fields, len(b.Fields))
	require.Len(t, got.Products, 3)

	first := got.Products[0]
	assert.Equal(t, "ABC-1", first.SKU)
	assert.Equal(t, model.ProductCompleted, first.Status)
	assert.Equal(t, "12W", first.Values["WATT"])
	assert.Equal(t, model.SourcePDF, first.Audit["WATT"].SourceType)
	assert.Equal(t, model.ProductError, got.Products[1].Status)
	assert.Equal(t, 3, got.Products[2].Row)
}

func TestSQLite_GetBatchNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetBatch(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_SaveProductUpserts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	b := testBatch()
	require.NoError(t, st.SaveBatch(ctx, b))

	p := b.Products[2]
	p.Status = model.ProductCompleted
	p.SetField("TITOLO", "Lampada", model.SourceInfo{Status: model.StatusEnriched})
	require.NoError(t, st.SaveProduct(ctx, b.ID, p))

	completed, err := st.ListProducts(ctx, b.ID, model.ProductCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, "Lampada", completed[1].Values["TITOLO"])

	all, err := st.ListProducts(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLite_ResetFailed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	b := testBatch()
	require.NoError(t, st.SaveBatch(ctx, b))

	n, err := st.ResetFailed(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	failed, err := st.ListProducts(ctx, b.ID, model.ProductError)
	require.NoError(t, err)
	assert.Empty(t, failed)

	got, err := st.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProductPending, got.Products[1].Status)
	assert.Empty(t, got.Products[1].Error)
	assert.Equal(t, "12W", got.Products[0].Values["WATT"])

	n, err = st.ResetFailed(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_ListBatches(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := testBatch()
	require.NoError(t, st.SaveBatch(ctx, first))
	second := model.NewBatch("empty", model.DefaultFields())
	require.NoError(t, st.SaveBatch(ctx, second))

	list, err := st.ListBatches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := map[string]model.BatchSummary{}
	for _, s := range list {
		byID[s.ID] = s
	}
	counts := byID[first.ID].Counts
	assert.Equal(t, 1, counts[model.ProductCompleted])
	assert.Equal(t, 1, counts[model.ProductError])
	assert.Equal(t, 1, counts[model.ProductPending])
	assert.Empty(t, byID[second.ID].Counts)

	limited, err := st.ListBatches(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}
