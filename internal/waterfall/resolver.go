package waterfall

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/standardize"
)

// Resolver merges candidate values into a product by source priority.
type Resolver struct {
	priority Priority
	std      *standardize.Standardizer
	trusted  []string
}

// NewResolver creates a Resolver for one run.
func NewResolver(priority Priority, std *standardize.Standardizer, trustedDomains []string) *Resolver {
	if std == nil {
		std = standardize.Default()
	}
	trusted := make([]string, 0, len(trustedDomains))
	for _, d := range trustedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			trusted = append(trusted, d)
		}
	}
	return &Resolver{priority: priority, std: std, trusted: trusted}
}

// Priority returns the run's priority.
func (r *Resolver) Priority() Priority { return r.priority }

// TrustedDomains returns the normalized trusted domain list.
func (r *Resolver) TrustedDomains() []string { return append([]string(nil), r.trusted...) }

// Tier returns the initial status and confidence for a value from t. Local
// sources are LOCKED; web values default to medium and are lowered when the
// domain is not trusted.
func Tier(t model.DataSourceType) (model.FieldStatus, model.Confidence) {
	switch t {
	case model.SourceMapping, model.SourceManufacturer:
		return model.StatusLocked, model.ConfidenceHigh
	case model.SourcePDF:
		return model.StatusStrict, model.ConfidenceHigh
	case model.SourceWeb, model.SourceImage:
		return model.StatusEnriched, model.ConfidenceMedium
	case model.SourceDerived:
		return model.StatusEnriched, model.ConfidenceHigh
	default:
		return model.StatusEnriched, model.ConfidenceLow
	}
}

// ResolveLocal resolves fields from the product's MAPPING and MANUFACTURER
// candidates. It never calls out; fields it cannot fill are returned as
// unresolved.
func (r *Resolver) ResolveLocal(p *model.ProcessedProduct, schema *model.Schema) *Result {
	var local []model.CandidateValue
	for _, c := range p.Candidates {
		if c.Source.IsLocal() {
			local = append(local, c)
		}
	}
	return r.Resolve(p, schema, local)
}

// Resolve fills every empty enabled field from the highest-priority active
// source offering a non-empty value. Fields that already hold a value are
// left untouched.
func (r *Resolver) Resolve(p *model.ProcessedProduct, schema *model.Schema, candidates []model.CandidateValue) *Result {
	return r.resolve(p, schema, candidates, nil, r.localInfo)
}

type infoFunc func(c model.CandidateValue, f model.SchemaField) model.SourceInfo

func (r *Resolver) resolve(
	p *model.ProcessedProduct,
	schema *model.Schema,
	candidates []model.CandidateValue,
	extra map[string][]model.Warning,
	info infoFunc,
) *Result {
	byField := make(map[string][]model.CandidateValue)
	for _, c := range candidates {
		byField[c.FieldID] = append(byField[c.FieldID], c)
	}

	res := &Result{Resolutions: make(map[string]FieldResolution)}
	for _, f := range schema.Enabled() {
		res.FieldsTotal++
		if p.Has(f.Name) {
			res.FieldsResolved++
			continue
		}

		cands := byField[f.ID]
		sort.SliceStable(cands, func(i, j int) bool {
			return r.priority.Rank(cands[i].Source) < r.priority.Rank(cands[j].Source)
		})

		fr := FieldResolution{Field: f.Name}
		for _, c := range cands {
			if !r.priority.Enabled(c.Source) {
				fr.Skipped = append(fr.Skipped, c)
				continue
			}
			fr.Attempts = append(fr.Attempts, c)
			if r.std.IsNull(c.RawValue) {
				continue
			}
			std := r.std.Standardize(c.RawValue, f)
			if std.Value == "" {
				continue
			}

			si := info(c, f)
			si.AddWarning(extra[f.ID]...)
			si.AddWarning(std.Warnings...)
			p.SetField(f.Name, std.Value, si)

			winner := c
			fr.Winner = &winner
			fr.Resolved = true
			break
		}

		if fr.Resolved {
			res.FieldsResolved++
		} else {
			res.Unresolved = append(res.Unresolved, f)
		}
		if len(fr.Attempts) > 0 || len(fr.Skipped) > 0 {
			res.Resolutions[f.Name] = fr
		}
	}
	return res
}

func (r *Resolver) localInfo(c model.CandidateValue, _ model.SchemaField) model.SourceInfo {
	status, conf := Tier(c.Source)
	return model.SourceInfo{
		Source:     sourceLabel(c),
		SourceType: c.Source,
		Confidence: conf,
		Evidence:   c.Evidence,
		URL:        c.URL,
		Status:     status,
	}
}

func sourceLabel(c model.CandidateValue) string {
	if c.Label != "" {
		return c.Label
	}
	return string(c.Source)
}

// External is the output of one enrichment call together with the context
// that was supplied to it.
type External struct {
	// Values and Hints are keyed by schema field name.
	Values        map[string]string
	Hints         map[string]string
	GroundingURLs []string
	// PDFLabel and PDFEvidence describe the catalog page passed to the call.
	PDFLabel    string
	PDFEvidence string
	// HadImage reports whether a product or page image was supplied.
	HadImage bool
}

// MergeExternal classifies each returned value by its audit hint and merges
// it into still-empty slots only. LOCKED fields are never touched.
func (r *Resolver) MergeExternal(p *model.ProcessedProduct, schema *model.Schema, ext External) *Result {
	var cands []model.CandidateValue
	extra := make(map[string][]model.Warning)

	for name, raw := range ext.Values {
		f, ok := lookupField(schema, name)
		if !ok {
			zap.L().Debug("waterfall: ignoring unknown field from enrichment",
				zap.String("sku", p.SKU), zap.String("field", name))
			continue
		}
		if info, locked := p.Audit[f.Name]; locked && info.Status == model.StatusLocked {
			continue
		}
		c, warns := r.classify(hintFor(ext.Hints, name, f.Name), ext)
		c.FieldID = f.ID
		c.RawValue = raw
		cands = append(cands, c)
		extra[f.ID] = append(extra[f.ID], warns...)
	}

	return r.resolve(p, schema, cands, extra, r.externalInfo)
}

func (r *Resolver) externalInfo(c model.CandidateValue, f model.SchemaField) model.SourceInfo {
	si := model.SourceInfo{
		Source:     sourceLabel(c),
		SourceType: c.Source,
		Evidence:   c.Evidence,
		URL:        c.URL,
	}
	switch c.Source {
	case model.SourcePDF:
		si.Status, si.Confidence = model.StatusStrict, model.ConfidenceHigh
	case model.SourceManufacturer, model.SourceMapping:
		// Transcribed by the enrichment call from the supplied manufacturer
		// data, so it is evidence-backed but not user-locked.
		si.Status, si.Confidence = model.StatusStrict, model.ConfidenceMedium
	case model.SourceWeb:
		si.Status = model.StatusEnriched
		if r.trustedWeb(c) {
			si.Confidence = model.ConfidenceMedium
		} else {
			si.Confidence = model.ConfidenceLow
			si.AddWarning(model.Warn("unverified web source %s", sourceLabel(c)))
		}
	case model.SourceImage:
		si.Status, si.Confidence = model.StatusEnriched, model.ConfidenceMedium
	default:
		si.Status, si.Confidence = Tier(c.Source)
		if c.Source == model.SourceAI && f.RequiresEvidence() {
			si.AddWarning(model.Warn("no document evidence for required field %s", f.Name))
		}
	}
	return si
}

func lookupField(schema *model.Schema, name string) (model.SchemaField, bool) {
	if f, ok := schema.ByName(name); ok {
		return f, true
	}
	for _, f := range schema.Fields() {
		if strings.EqualFold(strings.TrimSpace(f.Name), strings.TrimSpace(name)) {
			return f, true
		}
	}
	return model.SchemaField{}, false
}

func hintFor(hints map[string]string, keys ...string) string {
	for _, k := range keys {
		if h, ok := hints[k]; ok {
			return h
		}
	}
	for k, h := range hints {
		for _, want := range keys {
			if strings.EqualFold(k, want) {
				return h
			}
		}
	}
	return ""
}
