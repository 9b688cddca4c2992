// Package standardize canonicalizes field values and reports validation
// findings as warnings. Every function here is pure and never fails.
package standardize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/catalog-enricher/internal/model"
)

// Kind is the value rule selected for a field.
type Kind int

// Rule kinds.
const (
	KindGeneric Kind = iota
	KindProtection
	KindEnergy
	KindDimension
	KindColor
)

func (k Kind) String() string {
	switch k {
	case KindProtection:
		return "protection"
	case KindEnergy:
		return "energy"
	case KindDimension:
		return "dimension"
	case KindColor:
		return "color"
	default:
		return "generic"
	}
}

// Result is a canonical value plus the findings produced on the way.
type Result struct {
	Value    string
	Warnings []model.Warning
}

// Standardizer applies Rules to field values.
type Standardizer struct {
	rules      Rules
	nulls      map[string]struct{}
	protection map[string]struct{}
	energy     map[string]struct{}
	dimension  map[string]struct{}
	color      map[string]struct{}
}

// New builds a Standardizer from rules.
func New(r Rules) *Standardizer {
	s := &Standardizer{
		rules:      r,
		nulls:      set(r.NullTokens, strings.ToLower),
		protection: set(r.ProtectionKeywords, foldToken),
		energy:     set(r.EnergyKeywords, foldToken),
		dimension:  set(r.DimensionKeywords, foldToken),
		color:      set(r.ColorKeywords, foldToken),
	}
	s.rules.ColorSynonyms = make([]ColorSynonym, len(r.ColorSynonyms))
	for i, syn := range r.ColorSynonyms {
		s.rules.ColorSynonyms[i] = ColorSynonym{Match: strings.ToLower(syn.Match), Canonical: syn.Canonical}
	}
	return s
}

// Default builds a Standardizer with DefaultRules.
func Default() *Standardizer {
	return New(DefaultRules())
}

// Kind reports which value rule applies to a field name. Protection, energy
// and dimension rules are exclusive and checked in that order.
func (s *Standardizer) Kind(fieldName string) Kind {
	tokens := fieldTokens(fieldName)
	switch {
	case hasAny(tokens, s.protection):
		return KindProtection
	case hasAny(tokens, s.energy):
		return KindEnergy
	case hasAny(tokens, s.dimension):
		return KindDimension
	case hasAny(tokens, s.color):
		return KindColor
	default:
		return KindGeneric
	}
}

// Standardize canonicalizes raw for field f. The returned value is a fixed
// point: standardizing it again yields the same value.
func (s *Standardizer) Standardize(raw string, f model.SchemaField) Result {
	v := strings.TrimSpace(raw)
	if s.IsNull(v) {
		return Result{}
	}

	var res Result
	switch s.Kind(f.Name) {
	case KindProtection:
		res = protectionClass(v)
	case KindEnergy:
		res = energyLabel(v)
	case KindDimension:
		res = dimensions(v)
	case KindColor:
		res = s.colorName(v)
	default:
		res = Result{Value: v}
	}

	return enforceAllowed(res, f)
}

// IsNull reports whether v is a placeholder meaning "no value".
func (s *Standardizer) IsNull(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return true
	}
	_, ok := s.nulls[v]
	return ok
}

func enforceAllowed(res Result, f model.SchemaField) Result {
	if len(f.AllowedValues) == 0 || res.Value == "" {
		return res
	}
	for _, allowed := range f.AllowedValues {
		if strings.EqualFold(strings.TrimSpace(allowed), res.Value) {
			res.Value = strings.TrimSpace(allowed)
			return res
		}
	}
	res.Warnings = append(res.Warnings,
		model.Block("value %q is not one of the allowed values [%s]", res.Value, strings.Join(f.AllowedValues, ", ")))
	return res
}

// foldToken lower-cases s and strips combining marks. Transformers carry
// state, so a fresh chain is built per call.
func foldToken(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(folder, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func fieldTokens(name string) []string {
	return strings.FieldsFunc(foldToken(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func set(items []string, fn func(string) string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[fn(it)] = struct{}{}
	}
	return m
}

func hasAny(tokens []string, kws map[string]struct{}) bool {
	for _, t := range tokens {
		if _, ok := kws[t]; ok {
			return true
		}
	}
	return false
}
