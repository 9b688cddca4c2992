package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Blocker identifies one blocking warning in a batch.
type Blocker struct {
	SKU     string
	Field   string
	Message string
}

func (b Blocker) String() string {
	return fmt.Sprintf("SKU %s, field %s: %s", b.SKU, b.Field, b.Message)
}

// BlockingIssues lists the product's blocking warnings sorted by field name.
func (p *ProcessedProduct) BlockingIssues() []Blocker {
	names := make([]string, 0, len(p.Audit))
	for name := range p.Audit {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Blocker
	for _, name := range names {
		for _, w := range p.Audit[name].Blocking() {
			out = append(out, Blocker{SKU: p.SKU, Field: name, Message: w.Message})
		}
	}
	return out
}

// ExportBlockers collects every blocking warning across products, in product
// order.
func ExportBlockers(products []*ProcessedProduct) []Blocker {
	var out []Blocker
	for _, p := range products {
		out = append(out, p.BlockingIssues()...)
	}
	return out
}

// ExportBlockedError is returned when a batch cannot be exported.
type ExportBlockedError struct {
	Blockers []Blocker
	// Incomplete lists SKUs of products that have not completed.
	Incomplete []string
}

func (e *ExportBlockedError) Error() string {
	var b strings.Builder
	b.WriteString("export blocked")
	if len(e.Blockers) > 0 {
		fmt.Fprintf(&b, ": %d blocking issue(s)", len(e.Blockers))
		for _, bl := range e.Blockers {
			b.WriteString("; ")
			b.WriteString(bl.String())
		}
	}
	if len(e.Incomplete) > 0 {
		fmt.Fprintf(&b, "; %d product(s) not completed: %s", len(e.Incomplete), strings.Join(e.Incomplete, ", "))
	}
	return b.String()
}

// CheckExportable returns an *ExportBlockedError if any product is incomplete
// or carries a blocking warning.
func CheckExportable(products []*ProcessedProduct) error {
	e := &ExportBlockedError{Blockers: ExportBlockers(products)}
	for _, p := range products {
		if p.Status != ProductCompleted {
			e.Incomplete = append(e.Incomplete, p.SKU)
		}
	}
	if len(e.Blockers) == 0 && len(e.Incomplete) == 0 {
		return nil
	}
	return e
}

// CheckAuditInvariant verifies that every value has an audit record and that
// every missing evidence-required field carries a blocking EMPTY record.
func CheckAuditInvariant(p *ProcessedProduct, schema *Schema) error {
	for name := range p.Values {
		if _, ok := p.Audit[name]; !ok {
			return eris.Errorf("model: field %q of SKU %s has no audit record", name, p.SKU)
		}
	}
	for _, f := range schema.Enabled() {
		if !f.RequiresEvidence() || p.Has(f.Name) {
			continue
		}
		info, ok := p.Audit[f.Name]
		if !ok || info.Status != StatusEmpty || len(info.Blocking()) == 0 {
			return eris.Errorf("model: required field %q of SKU %s is missing without a blocking EMPTY record", f.Name, p.SKU)
		}
	}
	return nil
}
