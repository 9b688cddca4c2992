package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/resilience"
	"github.com/sells-group/catalog-enricher/internal/store"
	"github.com/sells-group/catalog-enricher/internal/tabular"
)

func testFields() []model.SchemaField {
	return []model.SchemaField{
		{ID: "f1", Name: "WATT", Enabled: true, Class: model.ClassHard, Policy: model.PolicyRequiredEvidence},
		{ID: "f2", Name: "TITOLO", Enabled: true, Class: model.ClassSoft, Policy: model.PolicyCreativeOnly},
	}
}

func testSchema(t *testing.T) *model.Schema {
	t.Helper()
	s, err := model.NewSchema(testFields())
	require.NoError(t, err)
	return s
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(t.Context()))
	return st
}

// fastOptions keeps retry backoff in the millisecond range.
func fastOptions() Options {
	return Options{
		CallTimeout: time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
			Multiplier:     2,
		},
	}
}

func row(n int, kv ...string) tabular.Row {
	r := tabular.Row{Number: n, Values: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Headers = append(r.Headers, kv[i])
		r.Values[kv[i]] = kv[i+1]
	}
	return r
}

// savedBatch builds a batch from base rows and persists it.
func savedBatch(t *testing.T, st store.Store, in Input) *model.Batch {
	t.Helper()
	b := BuildBatch(in, testSchema(t))
	require.NoError(t, st.SaveBatch(t.Context(), b))
	return b
}

func productBySKU(t *testing.T, b *model.Batch, sku string) *model.ProcessedProduct {
	t.Helper()
	for _, p := range b.Products {
		if p.SKU == sku {
			return p
		}
	}
	t.Fatalf("product %s not found", sku)
	return nil
}
