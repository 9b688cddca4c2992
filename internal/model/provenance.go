package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// DataSourceType identifies where a candidate value came from.
type DataSourceType string

// Source types in their default priority order.
const (
	SourceMapping      DataSourceType = "MAPPING"
	SourceManufacturer DataSourceType = "MANUFACTURER"
	SourcePDF          DataSourceType = "PDF"
	SourceWeb          DataSourceType = "WEB"
	SourceImage        DataSourceType = "IMAGE"
	SourceDerived      DataSourceType = "DERIVED"
	SourceAI           DataSourceType = "AI"
)

// AllSourceTypes returns every source type in default priority order.
func AllSourceTypes() []DataSourceType {
	return []DataSourceType{
		SourceMapping, SourceManufacturer, SourcePDF, SourceWeb,
		SourceImage, SourceDerived, SourceAI,
	}
}

// ParseDataSourceType parses a source type name case-insensitively.
func ParseDataSourceType(s string) (DataSourceType, error) {
	t := DataSourceType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllSourceTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", eris.Errorf("model: unknown source type %q", s)
}

// IsLocal reports whether the source is user-supplied data resolved without
// an external call.
func (t DataSourceType) IsLocal() bool {
	return t == SourceMapping || t == SourceManufacturer
}

// Confidence is the coarse trust level of a resolved value.
type Confidence string

// Confidence levels.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// FieldStatus is the trust tier of a resolved field.
type FieldStatus string

// Field statuses.
const (
	// StatusLocked values come from user-trusted local data and are never overwritten.
	StatusLocked FieldStatus = "LOCKED"
	// StatusStrict values are external but backed by document evidence.
	StatusStrict FieldStatus = "STRICT"
	// StatusEnriched values are external without document-grade evidence.
	StatusEnriched FieldStatus = "ENRICHED"
	// StatusEmpty marks a required field that could not be resolved.
	StatusEmpty FieldStatus = "EMPTY"
)

// Severity of a warning.
type Severity string

// Severities.
const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Action a warning asks of the reviewer.
type Action string

// Actions.
const (
	ActionNone        Action = "none"
	ActionReview      Action = "review"
	ActionBlockExport Action = "block_export"
)

// Warning is a field-level finding attached to an audit record.
type Warning struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Action   Action   `json:"action"`
}

// Blocking reports whether the warning prevents export.
func (w Warning) Blocking() bool {
	return w.Severity == SeverityError && w.Action == ActionBlockExport
}

// Info builds an informational warning.
func Info(format string, args ...any) Warning {
	return Warning{Message: fmt.Sprintf(format, args...), Severity: SeverityInfo, Action: ActionNone}
}

// Warn builds a warning that asks for review.
func Warn(format string, args ...any) Warning {
	return Warning{Message: fmt.Sprintf(format, args...), Severity: SeverityWarn, Action: ActionReview}
}

// Block builds an error that blocks export.
func Block(format string, args ...any) Warning {
	return Warning{Message: fmt.Sprintf(format, args...), Severity: SeverityError, Action: ActionBlockExport}
}

// SourceInfo is the audit record attached to one resolved field.
type SourceInfo struct {
	Source     string         `json:"source"`
	SourceType DataSourceType `json:"source_type"`
	Confidence Confidence     `json:"confidence"`
	Evidence   string         `json:"evidence,omitempty"`
	URL        string         `json:"url,omitempty"`
	Status     FieldStatus    `json:"status"`
	Warnings   []Warning      `json:"warnings,omitempty"`
}

// AddWarning appends warnings to the record.
func (s *SourceInfo) AddWarning(w ...Warning) {
	s.Warnings = append(s.Warnings, w...)
}

// Blocking returns the blocking warnings on the record.
func (s SourceInfo) Blocking() []Warning {
	var out []Warning
	for _, w := range s.Warnings {
		if w.Blocking() {
			out = append(out, w)
		}
	}
	return out
}

// Provenance renders the record as a single line for the sources sheet.
func (s SourceInfo) Provenance() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Conf: %s | Fonte: %s", s.Status, s.Confidence, s.Source)
	if s.URL != "" {
		fmt.Fprintf(&b, " | URL: %s", s.URL)
	}
	for _, w := range s.Warnings {
		if w.Severity != SeverityInfo {
			fmt.Fprintf(&b, " | %s: %s", strings.ToUpper(string(w.Severity)), w.Message)
		}
	}
	return b.String()
}
