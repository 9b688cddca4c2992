// Package reconcile keeps composite measure fields consistent with their
// atomic parts.
package reconcile

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sells-group/catalog-enricher/internal/config"
	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/standardize"
	"github.com/sells-group/catalog-enricher/internal/waterfall"
)

// DefaultTolerance is the largest difference, in centimeters, still
// considered equal.
const DefaultTolerance = 0.5

// Group ties a composite field to its atomic fields. Atomics are ordered as
// they appear in the composite (width, height, length).
type Group struct {
	Composite string
	Atomics   []string
}

// Config lists the groups to reconcile.
type Config struct {
	Groups    []Group
	Tolerance float64
}

// DefaultConfig reconciles the lighting schema's body measures.
func DefaultConfig() Config {
	return Config{
		Groups: []Group{{
			Composite: "Misure_Generali",
			Atomics:   []string{"CORPO LARGHEZZA", "CORPO ALTEZZA GENERALE", "CORPO LUNGHEZZA"},
		}},
		Tolerance: DefaultTolerance,
	}
}

// FromConfig builds a Config, falling back to the default groups.
func FromConfig(cfg config.ReconcileConfig) Config {
	out := DefaultConfig()
	if len(cfg.Groups) > 0 {
		out.Groups = out.Groups[:0]
		for _, g := range cfg.Groups {
			out.Groups = append(out.Groups, Group{Composite: g.Composite, Atomics: g.Atomics})
		}
	}
	if cfg.Tolerance > 0 {
		out.Tolerance = cfg.Tolerance
	}
	return out
}

// Reconciler derives, backfills and cross-checks measure groups.
type Reconciler struct {
	cfg Config
}

// New creates a Reconciler.
func New(cfg Config) *Reconciler {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	return &Reconciler{cfg: cfg}
}

// Outcome summarizes what Reconcile changed.
type Outcome struct {
	Derived   []string
	Backfill  []string
	Conflicts []string
}

// Reconcile must run after every other source has been merged. Derivation
// and backfill are skipped when the DERIVED source is disabled; conflict
// detection always runs. A conflicting composite is never used to backfill.
func (r *Reconciler) Reconcile(p *model.ProcessedProduct, schema *model.Schema, priority waterfall.Priority) Outcome {
	var out Outcome
	deriveOK := priority.Enabled(model.SourceDerived)

	for _, g := range r.cfg.Groups {
		comp, ok := schema.ByName(g.Composite)
		if !ok || !comp.Enabled {
			continue
		}
		atomics := enabledAtomics(schema, g.Atomics)

		if deriveOK && !p.Has(comp.Name) {
			if r.derive(p, comp, atomics) {
				out.Derived = append(out.Derived, comp.Name)
			}
			continue
		}
		if !p.Has(comp.Name) {
			continue
		}

		if r.conflict(p, comp, atomics) {
			out.Conflicts = append(out.Conflicts, comp.Name)
			continue
		}
		if deriveOK {
			out.Backfill = append(out.Backfill, r.backfill(p, comp, atomics)...)
		}
	}
	return out
}

type atomic struct {
	pos   int
	field model.SchemaField
}

func enabledAtomics(schema *model.Schema, names []string) []atomic {
	var out []atomic
	for i, n := range names {
		if f, ok := schema.ByName(n); ok && f.Enabled {
			out = append(out, atomic{pos: i, field: f})
		}
	}
	return out
}

func (r *Reconciler) derive(p *model.ProcessedProduct, comp model.SchemaField, atomics []atomic) bool {
	var parts, names []string
	for _, a := range atomics {
		if v := p.Values[a.field.Name]; v != "" {
			parts = append(parts, v)
			names = append(names, a.field.Name)
		}
	}
	if len(parts) < 2 {
		return false
	}
	info := model.SourceInfo{
		Source:     "Derived: " + strings.Join(names, " x "),
		SourceType: model.SourceDerived,
		Confidence: model.ConfidenceHigh,
		Status:     model.StatusEnriched,
		Evidence:   strings.Join(parts, " x "),
	}
	info.AddWarning(model.Info("%s derived from %s", comp.Name, strings.Join(names, ", ")))
	p.SetField(comp.Name, strings.Join(parts, " x "), info)
	return true
}

func (r *Reconciler) backfill(p *model.ProcessedProduct, comp model.SchemaField, atomics []atomic) []string {
	compVal := p.Values[comp.Name]
	values, _, ok := standardize.ParseDimensions(compVal)
	if !ok {
		return nil
	}
	var filled []string
	for _, a := range atomics {
		if p.Has(a.field.Name) || a.pos >= len(values) {
			continue
		}
		info := model.SourceInfo{
			Source:     "Derived: " + comp.Name,
			SourceType: model.SourceDerived,
			Confidence: model.ConfidenceMedium,
			Status:     model.StatusEnriched,
			Evidence:   compVal,
		}
		info.AddWarning(model.Info("%s backfilled from %s", a.field.Name, comp.Name))
		p.SetField(a.field.Name, standardize.FormatCM(values[a.pos]), info)
		filled = append(filled, a.field.Name)
	}
	return filled
}

func (r *Reconciler) conflict(p *model.ProcessedProduct, comp model.SchemaField, atomics []atomic) bool {
	compVals, _, ok := standardize.ParseDimensions(p.Values[comp.Name])
	if !ok {
		return false
	}
	var atomVals []float64
	var described []string
	for _, a := range atomics {
		v := p.Values[a.field.Name]
		if v == "" {
			continue
		}
		vals, segs, ok := standardize.ParseDimensions(v)
		if !ok || segs != 1 {
			continue
		}
		atomVals = append(atomVals, vals[0])
		described = append(described, fmt.Sprintf("%s=%s", a.field.Name, v))
	}
	if len(atomVals) == 0 {
		return false
	}

	need := min(len(atomVals), len(compVals))
	if matched(atomVals, compVals, r.cfg.Tolerance) >= need {
		return false
	}
	p.AppendWarning(comp.Name, model.Block("dimension conflict: %s=%q disagrees with %s",
		comp.Name, p.Values[comp.Name], strings.Join(described, ", ")))
	return true
}

// matched returns the size of a maximum matching between a and b where two
// values match when they differ by at most tol.
func matched(a, b []float64, tol float64) int {
	x := append([]float64(nil), a...)
	y := append([]float64(nil), b...)
	sort.Float64s(x)
	sort.Float64s(y)

	n, i, j := 0, 0, 0
	for i < len(x) && j < len(y) {
		switch {
		case math.Abs(x[i]-y[j]) <= tol+1e-9:
			n++
			i++
			j++
		case x[i] < y[j]:
			i++
		default:
			j++
		}
	}
	return n
}
