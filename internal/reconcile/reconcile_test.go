package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-enricher/internal/config"
	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/waterfall"
)

const (
	width  = "CORPO LARGHEZZA"
	height = "CORPO ALTEZZA GENERALE"
	length = "CORPO LUNGHEZZA"
	comp   = "Misure_Generali"
)

func local(v string) model.SourceInfo {
	return model.SourceInfo{Source: "Mapping", SourceType: model.SourceMapping, Confidence: model.ConfidenceHigh, Status: model.StatusLocked, Evidence: v}
}

func product(values map[string]string) *model.ProcessedProduct {
	p := model.NewProduct(1, "SKU-1", "")
	for k, v := range values {
		p.SetField(k, v, local(v))
	}
	return p
}

func priority(t *testing.T, disabled ...model.DataSourceType) waterfall.Priority {
	t.Helper()
	p, err := waterfall.NewPriority(model.AllSourceTypes(), disabled)
	require.NoError(t, err)
	return p
}

func TestDeriveComposite(t *testing.T) {
	t.Parallel()

	p := product(map[string]string{width: "30.0 cm", height: "40.0 cm"})
	out := New(DefaultConfig()).Reconcile(p, model.DefaultSchema(), priority(t))

	assert.Equal(t, []string{comp}, out.Derived)
	assert.Equal(t, "30.0 cm x 40.0 cm", p.Values[comp])

	info := p.Audit[comp]
	assert.Equal(t, model.SourceDerived, info.SourceType)
	assert.Equal(t, model.StatusEnriched, info.Status)
	assert.Equal(t, model.ConfidenceHigh, info.Confidence)
	require.Len(t, info.Warnings, 1)
	assert.Equal(t, model.SeverityInfo, info.Warnings[0].Severity)
	assert.Empty(t, out.Conflicts)
}

func TestDeriveNeedsTwoAtomics(t *testing.T) {
	t.Parallel()

	p := product(map[string]string{width: "30.0 cm"})
	out := New(DefaultConfig()).Reconcile(p, model.DefaultSchema(), priority(t))

	assert.Empty(t, out.Derived)
	assert.False(t, p.Has(comp))
}

func TestBackfillAtomics(t *testing.T) {
	t.Parallel()

	p := product(map[string]string{comp: "30 x 40"})
	out := New(DefaultConfig()).Reconcile(p, model.DefaultSchema(), priority(t))

	assert.ElementsMatch(t, []string{width, height}, out.Backfill)
	assert.Equal(t, "30.0 cm", p.Values[width])
	assert.Equal(t, "40.0 cm", p.Values[height])
	assert.False(t, p.Has(length))

	for _, name := range []string{width, height} {
		info := p.Audit[name]
		assert.Equal(t, model.SourceDerived, info.SourceType, name)
		assert.Equal(t, model.ConfidenceMedium, info.Confidence, name)
	}
	assert.Empty(t, out.Conflicts)
}

func TestBackfillKeepsExistingAtomics(t *testing.T) {
	t.Parallel()

	p := product(map[string]string{comp: "30.0 x 40.0 x 12.0 cm", width: "30.0 cm"})
	out := New(DefaultConfig()).Reconcile(p, model.DefaultSchema(), priority(t))

	assert.ElementsMatch(t, []string{height, length}, out.Backfill)
	assert.Equal(t, model.SourceMapping, p.Audit[width].SourceType)
	assert.Equal(t, "12.0 cm", p.Values[length])
}

func TestConflictBlocksComposite(t *testing.T) {
	t.Parallel()

	p := product(map[string]string{height: "40 cm", length: "30 cm", comp: "10 x 10"})
	out := New(DefaultConfig()).Reconcile(p, model.DefaultSchema(), priority(t))

	assert.Equal(t, []string{comp}, out.Conflicts)
	assert.Empty(t, out.Backfill)
	assert.False(t, p.Has(width))
	blocking := p.Audit[comp].Blocking()
	require.Len(t, blocking, 1)
	assert.Contains(t, blocking[0].Message, "dimension conflict")
}

func TestConsistentValuesWithinTolerance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values map[string]string
	}{
		{"same order", map[string]string{width: "30.0 cm", height: "40.0 cm", comp: "30.0 x 40.0 cm"}},
		{"swapped order", map[string]string{width: "40.0 cm", height: "30.0 cm", comp: "30.0 x 40.0 cm"}},
		{"within half a centimeter", map[string]string{width: "30.4 cm", comp: "30.0 x 40.0 cm"}},
		{"millimeter composite", map[string]string{width: "30.0 cm", height: "40.0 cm", comp: "300 x 400 mm"}},
		{"composite summarizes fewer measures", map[string]string{width: "30 cm", height: "40 cm", length: "25 cm", comp: "30 x 40"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := product(tt.values)
			out := New(DefaultConfig()).Reconcile(p, model.DefaultSchema(), priority(t))
			assert.Empty(t, out.Conflicts)
			assert.Empty(t, p.Audit[comp].Blocking())
		})
	}
}

func TestDerivedDisabled(t *testing.T) {
	t.Parallel()

	pr := priority(t, model.SourceDerived)

	p := product(map[string]string{width: "30.0 cm", height: "40.0 cm"})
	out := New(DefaultConfig()).Reconcile(p, model.DefaultSchema(), pr)
	assert.Empty(t, out.Derived)
	assert.False(t, p.Has(comp))

	p = product(map[string]string{comp: "30 x 40"})
	out = New(DefaultConfig()).Reconcile(p, model.DefaultSchema(), pr)
	assert.Empty(t, out.Backfill)
	assert.False(t, p.Has(width))

	p = product(map[string]string{height: "40 cm", comp: "10 x 10"})
	out = New(DefaultConfig()).Reconcile(p, model.DefaultSchema(), pr)
	assert.Equal(t, []string{comp}, out.Conflicts)
}

func TestUnparseableCompositeIsNotAConflict(t *testing.T) {
	t.Parallel()

	p := product(map[string]string{width: "30 cm", comp: "vedi scheda"})
	out := New(DefaultConfig()).Reconcile(p, model.DefaultSchema(), priority(t))
	assert.Empty(t, out.Conflicts)
	assert.Empty(t, out.Backfill)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	cfg := FromConfig(config.ReconcileConfig{})
	assert.Equal(t, DefaultConfig(), cfg)

	cfg = FromConfig(config.ReconcileConfig{
		Tolerance: 1,
		Groups:    []config.DimensionGroup{{Composite: "DIM", Atomics: []string{"A", "B"}}},
	})
	assert.InDelta(t, 1.0, cfg.Tolerance, 1e-9)
	require.Len(t, cfg.Groups, 1)
	assert.Equal(t, "DIM", cfg.Groups[0].Composite)
}

func TestMatched(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, matched([]float64{40, 30}, []float64{30, 40}, 0.5))
	assert.Equal(t, 0, matched([]float64{40, 30}, []float64{10, 10}, 0.5))
	assert.Equal(t, 1, matched([]float64{10, 10}, []float64{10, 20}, 0.5))
}

func TestMarkEmpty(t *testing.T) {
	t.Parallel()

	schema := model.DefaultSchema()
	p := product(map[string]string{"WATT": "10 W"})
	marked := MarkEmpty(p, schema)

	assert.NotContains(t, marked, "WATT")
	assert.NotContains(t, marked, "TITOLO")
	assert.Contains(t, marked, "CLASSE IP")
	assert.Contains(t, marked, comp)

	ip := p.Audit["CLASSE IP"]
	assert.Equal(t, model.StatusEmpty, ip.Status)
	assert.Len(t, ip.Blocking(), 1)

	dims := p.Audit[comp]
	assert.Equal(t, model.StatusEmpty, dims.Status)
	assert.Empty(t, dims.Blocking())
	require.Len(t, dims.Warnings, 1)
	assert.Equal(t, model.SeverityWarn, dims.Warnings[0].Severity)

	require.NoError(t, model.CheckAuditInvariant(p, schema))
}
