package standardize

import (
	"github.com/sells-group/catalog-enricher/internal/config"
)

// ColorSynonym maps a lower-case substring to a canonical color name.
type ColorSynonym struct {
	Match     string
	Canonical string
}

// Rules holds the keyword and synonym tables the standardizer matches on.
// Keywords are compared against the lower-cased, accent-folded tokens of a
// field name.
type Rules struct {
	NullTokens         []string
	ProtectionKeywords []string
	EnergyKeywords     []string
	DimensionKeywords  []string
	ColorKeywords      []string
	// ColorSynonyms are tried in order; the first match wins.
	ColorSynonyms []ColorSynonym
}

// DefaultRules returns the lighting-catalog rule set.
func DefaultRules() Rules {
	return Rules{
		NullTokens: []string{
			"null", "n/d", "n/a", "nd", "nan", "none", "-",
			"undefined", "nessuno", "unknown",
		},
		ProtectionKeywords: []string{"ip", "protezione", "protection"},
		EnergyKeywords:     []string{"energetica", "energia", "energy"},
		DimensionKeywords: []string{
			"altezza", "lunghezza", "larghezza", "profondita", "diametro",
			"misure", "misura", "dimensioni", "dimensione",
			"height", "length", "width", "depth", "diameter", "measures", "dimensions",
		},
		ColorKeywords: []string{"colore", "colori", "finitura", "color", "colour", "finish"},
		ColorSynonyms: []ColorSynonym{
			{Match: "antracite", Canonical: "Grigio Scuro"},
			{Match: "grafite", Canonical: "Grigio Scuro"},
			{Match: "grigio scuro", Canonical: "Grigio Scuro"},
			{Match: "cromato", Canonical: "Cromato"},
			{Match: "cromo", Canonical: "Cromato"},
			{Match: "chrome", Canonical: "Cromato"},
			{Match: "nichel", Canonical: "Nichel Satinato"},
			{Match: "ottone", Canonical: "Ottone"},
			{Match: "brass", Canonical: "Ottone"},
			{Match: "bianco", Canonical: "Bianco"},
			{Match: "white", Canonical: "Bianco"},
			{Match: "nero", Canonical: "Nero"},
			{Match: "black", Canonical: "Nero"},
			{Match: "oro", Canonical: "Oro"},
			{Match: "gold", Canonical: "Oro"},
		},
	}
}

// RulesFromConfig overlays the configured tables on the defaults. Empty
// lists keep the default table.
func RulesFromConfig(cfg config.StandardizeConfig) Rules {
	r := DefaultRules()
	if len(cfg.NullTokens) > 0 {
		r.NullTokens = cfg.NullTokens
	}
	if len(cfg.ProtectionKeywords) > 0 {
		r.ProtectionKeywords = cfg.ProtectionKeywords
	}
	if len(cfg.EnergyKeywords) > 0 {
		r.EnergyKeywords = cfg.EnergyKeywords
	}
	if len(cfg.DimensionKeywords) > 0 {
		r.DimensionKeywords = cfg.DimensionKeywords
	}
	if len(cfg.ColorKeywords) > 0 {
		r.ColorKeywords = cfg.ColorKeywords
	}
	if len(cfg.ColorSynonyms) > 0 {
		r.ColorSynonyms = make([]ColorSynonym, 0, len(cfg.ColorSynonyms))
		for _, s := range cfg.ColorSynonyms {
			r.ColorSynonyms = append(r.ColorSynonyms, ColorSynonym{Match: s.Match, Canonical: s.Canonical})
		}
	}
	return r
}
