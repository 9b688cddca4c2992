package waterfall

import (
	"github.com/sells-group/catalog-enricher/internal/model"
)

// FieldResolution is the outcome of priority evaluation for one field.
type FieldResolution struct {
	Field    string                 `json:"field"`
	Resolved bool                   `json:"resolved"`
	Winner   *model.CandidateValue  `json:"winner,omitempty"`
	Attempts []model.CandidateValue `json:"attempts"`
	// Skipped lists candidates dropped because their source is disabled.
	Skipped []model.CandidateValue `json:"skipped,omitempty"`
}

// Result is the overall output of one resolution pass.
type Result struct {
	Resolutions map[string]FieldResolution `json:"resolutions"`
	// Unresolved holds enabled fields still without a value, in schema order.
	Unresolved     []model.SchemaField `json:"-"`
	FieldsResolved int                 `json:"fields_resolved"`
	FieldsTotal    int                 `json:"fields_total"`
}

// UnresolvedNames returns the names of the unresolved fields.
func (r *Result) UnresolvedNames() []string {
	out := make([]string, len(r.Unresolved))
	for i, f := range r.Unresolved {
		out[i] = f.Name
	}
	return out
}

// NeedsEvidence reports whether any unresolved field requires evidence.
func (r *Result) NeedsEvidence() bool {
	for _, f := range r.Unresolved {
		if f.RequiresEvidence() {
			return true
		}
	}
	return false
}
