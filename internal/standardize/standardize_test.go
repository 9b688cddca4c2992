package standardize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-enricher/internal/config"
	"github.com/sells-group/catalog-enricher/internal/model"
)

func hardField(name string, allowed ...string) model.SchemaField {
	return model.SchemaField{
		ID: name, Name: name, Enabled: true,
		Class: model.ClassHard, Policy: model.PolicyRequiredEvidence,
		AllowedValues: allowed,
	}
}

func severities(ws []model.Warning) []model.Severity {
	var out []model.Severity
	for _, w := range ws {
		out = append(out, w.Severity)
	}
	return out
}

func TestKind(t *testing.T) {
	t.Parallel()

	s := Default()
	tests := []struct {
		name string
		want Kind
	}{
		{"CLASSE IP", KindProtection},
		{"Grado di protezione", KindProtection},
		{"CLASSE ENERGETICA", KindEnergy},
		{"CORPO ALTEZZA GENERALE", KindDimension},
		{"Misure_Generali", KindDimension},
		{"Profondità", KindDimension},
		{"COLORE", KindColor},
		{"Finitura corpo", KindColor},
		{"WATT", KindGeneric},
		{"NOME SERIE", KindGeneric},
		{"SHIPPING", KindGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, s.Kind(tt.name), tt.want.String())
		})
	}
}

func TestNullTokens(t *testing.T) {
	t.Parallel()

	s := Default()
	for _, raw := range []string{"null", "NULL", " n/d ", "N/A", "nd", "NaN", "None", "-", "undefined", "Nessuno", "unknown", "   "} {
		t.Run(raw, func(t *testing.T) {
			t.Parallel()
			res := s.Standardize(raw, hardField("CLASSE ENERGETICA", "A", "B"))
			assert.Empty(t, res.Value)
			assert.Empty(t, res.Warnings)
		})
	}

	// Null tokens are whole-string only.
	res := s.Standardize("nd 20", hardField("NOME SERIE"))
	assert.Equal(t, "nd 20", res.Value)
}

func TestProtectionClass(t *testing.T) {
	t.Parallel()

	s := Default()
	f := hardField("CLASSE IP")
	tests := []struct {
		raw      string
		want     string
		severity []model.Severity
	}{
		{"ip 44", "IP44", nil},
		{"IP-44", "IP44", nil},
		{"IP44", "IP44", nil},
		{"ip:65", "IP65", nil},
		{"Protezione IP20 interna", "IP20", nil},
		{"44", "IP44", []model.Severity{model.SeverityInfo}},
		{"44 IP", "IP44", nil},
		{"44ip", "IP44", nil},
		{"grado 65-IP", "IP65", nil},
		{"144 ip", "144 ip", []model.Severity{model.SeverityError}},
		{"IPX4", "IPX4", []model.Severity{model.SeverityError}},
		{"stagno", "stagno", []model.Severity{model.SeverityError}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			res := s.Standardize(tt.raw, f)
			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.severity, severities(res.Warnings))
		})
	}

	res := s.Standardize("IPX4", f)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, model.ActionReview, res.Warnings[0].Action)
}

func TestEnergyLabel(t *testing.T) {
	t.Parallel()

	s := Default()

	t.Run("legacy scale converts with warning", func(t *testing.T) {
		t.Parallel()
		res := s.Standardize("A+++", hardField("CLASSE ENERGETICA"))
		assert.Equal(t, "A", res.Value)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, model.SeverityWarn, res.Warnings[0].Severity)
	})

	t.Run("legacy scale outside allowed set also blocks", func(t *testing.T) {
		t.Parallel()
		res := s.Standardize("A+++", hardField("CLASSE ENERGETICA", "B", "C", "D", "E", "F", "G"))
		assert.Equal(t, "A", res.Value)
		require.Len(t, res.Warnings, 2)
		assert.Equal(t, model.SeverityWarn, res.Warnings[0].Severity)
		assert.True(t, res.Warnings[1].Blocking())
	})

	t.Run("letter inside label text", func(t *testing.T) {
		t.Parallel()
		res := s.Standardize("Classe f", hardField("CLASSE ENERGETICA", "A", "B", "C", "D", "E", "F", "G"))
		assert.Equal(t, "F", res.Value)
		assert.Empty(t, res.Warnings)
	})

	t.Run("no letter passes through", func(t *testing.T) {
		t.Parallel()
		res := s.Standardize("42", hardField("CLASSE ENERGETICA"))
		assert.Equal(t, "42", res.Value)
		assert.Equal(t, []model.Severity{model.SeverityWarn}, severities(res.Warnings))
	})
}

func TestDimensions(t *testing.T) {
	t.Parallel()

	s := Default()
	f := hardField("CORPO ALTEZZA GENERALE")
	tests := []struct {
		raw      string
		want     string
		severity []model.Severity
	}{
		{"30", "30.0 cm", nil},
		{"30 cm", "30.0 cm", nil},
		{"300mm", "30.0 cm", nil},
		{"12,5 cm", "12.5 cm", nil},
		{"Ø 12 cm", "12.0 cm", nil},
		{"30 x 40", "30.0 x 40.0 cm", nil},
		{"300 x 400 x 250 mm", "30.0 x 40.0 x 25.0 cm", nil},
		{"30(L)*40(H)", "30.0 x 40.0 cm", nil},
		{"30cmx40cm", "30.0 x 40.0 cm", nil},
		{"30 × 40 (P)", "30.0 x 40.0 cm", nil},
		{"1,2 m", "120.0 cm", nil},
		{"30.0 cm x 40.0 cm", "30.0 x 40.0 cm", nil},
		{"vedi scheda", "vedi scheda", nil},
		{"30 x circa", "30 x circa", []model.Severity{model.SeverityWarn}},
		{"2 x 3 m", "200.0 x 300.0 cm", nil},
		{"30 x 400 mm", "3.0 x 40.0 cm", nil},
		{"2 m x 30 cm", "2 m x 30 cm", []model.Severity{model.SeverityWarn}},
		{"300 mm x 4 cm", "300 mm x 4 cm", []model.Severity{model.SeverityWarn}},
		{"30 cm x 400 mm", "30 cm x 400 mm", []model.Severity{model.SeverityWarn}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			res := s.Standardize(tt.raw, f)
			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.severity, severities(res.Warnings))
		})
	}
}

func TestParseDimensions(t *testing.T) {
	t.Parallel()

	vals, segs, ok := ParseDimensions("300 x 400 mm")
	assert.True(t, ok)
	assert.Equal(t, 2, segs)
	assert.InDeltaSlice(t, []float64{30, 40}, vals, 0.0001)

	vals, segs, ok = ParseDimensions("10 x ?")
	assert.False(t, ok)
	assert.Equal(t, 2, segs)
	assert.InDeltaSlice(t, []float64{10}, vals, 0.0001)

	_, _, ok = ParseDimensions("")
	assert.False(t, ok)

	vals, segs, ok = ParseDimensions("2 m x 30 cm")
	assert.False(t, ok, "mixed units do not parse")
	assert.Equal(t, 2, segs)
	assert.Empty(t, vals)

	assert.Equal(t, "30.0 cm", FormatCM(30))
}

func TestColorNames(t *testing.T) {
	t.Parallel()

	s := Default()
	f := model.SchemaField{ID: "c", Name: "COLORE", Class: model.ClassSoft, Policy: model.PolicyAllowInfer}
	tests := []struct{ raw, want string }{
		{"Antracite opaco", "Grigio Scuro"},
		{"GRAFITE", "Grigio Scuro"},
		{"cromo lucido", "Cromato"},
		{"Cromato", "Cromato"},
		{"nichel spazzolato", "Nichel Satinato"},
		{"Bianco", "Bianco"},
		{"verde salvia", "verde salvia"},
		{"Moro", "Moro"},
		{"oro satinato", "Oro"},
		{"Testa di moro", "Testa di moro"},
		{"nero/oro", "Nero"},
		{"Neroli", "Neroli"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			res := s.Standardize(tt.raw, f)
			assert.Equal(t, tt.want, res.Value)
			assert.Empty(t, res.Warnings)
		})
	}
}

func TestContainsWord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s, word string
		want    bool
	}{
		{"oro", "oro", true},
		{"oro satinato", "oro", true},
		{"giallo-oro", "oro", true},
		{"moro", "oro", false},
		{"moro e oro", "oro", true},
		{"tesoro", "oro", false},
		{"perché oro", "oro", true},
		{"èoro", "oro", false},
		{"", "oro", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsWord(tt.s, tt.word), "%q in %q", tt.word, tt.s)
	}
}

func TestColorCanonicalNamesMapToThemselves(t *testing.T) {
	t.Parallel()

	s := Default()
	f := model.SchemaField{ID: "c", Name: "COLORE", Class: model.ClassSoft, Policy: model.PolicyAllowInfer}
	for _, syn := range DefaultRules().ColorSynonyms {
		assert.Equal(t, syn.Canonical, s.Standardize(syn.Canonical, f).Value, syn.Match)
	}
}

func TestAllowedValues(t *testing.T) {
	t.Parallel()

	s := Default()
	f := model.SchemaField{ID: "m", Name: "MATERIALE", Class: model.ClassHard, Policy: model.PolicyRequiredEvidence,
		AllowedValues: []string{"Alluminio", "Vetro"}}

	res := s.Standardize("alluminio", f)
	assert.Equal(t, "Alluminio", res.Value, "case-insensitive match takes the allowed spelling")
	assert.Empty(t, res.Warnings)

	res = s.Standardize("Legno", f)
	assert.Equal(t, "Legno", res.Value)
	require.Len(t, res.Warnings, 1)
	assert.True(t, res.Warnings[0].Blocking())
	assert.Contains(t, res.Warnings[0].Message, "Legno")
}

func TestStandardizeIsFixedPoint(t *testing.T) {
	t.Parallel()

	s := Default()
	fields := []model.SchemaField{
		hardField("CLASSE IP"),
		hardField("CLASSE ENERGETICA", "A", "B", "C", "D", "E", "F", "G"),
		hardField("CLASSE ENERGETICA"),
		hardField("CORPO LUNGHEZZA"),
		hardField("Misure_Generali"),
		hardField("COLORE"),
		hardField("WATT"),
		hardField("MATERIALE", "Alluminio", "Vetro"),
	}
	inputs := []string{
		"ip 44", "44", "IP-44", "IPX4", "A+++", "Classe B", "A++", "xyz", "300mm", "30 x 40",
		"30 x circa", "1,2 m", "Ø 8", "antracite", "cromo", "verde", "10W", "alluminio",
		"null", "", "  spazi  ", "30.0 cm x 40.0 cm", "12,345 cm",
	}
	for _, f := range fields {
		for _, in := range inputs {
			first := s.Standardize(in, f)
			second := s.Standardize(first.Value, f)
			assert.Equal(t, first.Value, second.Value, "field %s input %q", f.Name, in)
		}
	}
}

func TestRulesFromConfig(t *testing.T) {
	t.Parallel()

	r := RulesFromConfig(config.StandardizeConfig{
		NullTokens:    []string{"?"},
		ColorKeywords: []string{"tinta"},
		ColorSynonyms: []config.ColorSynonym{{Match: "BRONZO", Canonical: "Bronzo"}},
	})
	assert.Equal(t, []string{"?"}, r.NullTokens)
	assert.Equal(t, DefaultRules().DimensionKeywords, r.DimensionKeywords)

	s := New(r)
	f := model.SchemaField{ID: "t", Name: "Tinta", Class: model.ClassSoft, Policy: model.PolicyAllowInfer}
	assert.Equal(t, "Bronzo", s.Standardize("bronzo anticato", f).Value)
	assert.Empty(t, s.Standardize("?", f).Value)
	assert.Equal(t, "null", s.Standardize("null", f).Value, "default null tokens replaced")
}
