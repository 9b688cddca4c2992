package model

import (
	"time"
)

// ProductStatus is the lifecycle state of a product within a batch.
type ProductStatus string

// Product states.
const (
	ProductPending    ProductStatus = "pending"
	ProductProcessing ProductStatus = "processing"
	ProductCompleted  ProductStatus = "completed"
	ProductError      ProductStatus = "error"
)

// CandidateValue is an unvalidated value offered by one source for one field.
type CandidateValue struct {
	FieldID  string         `json:"field_id"`
	RawValue string         `json:"raw_value"`
	Source   DataSourceType `json:"source"`
	// Label is a human description of the origin, e.g. the column name.
	Label    string `json:"label,omitempty"`
	URL      string `json:"url,omitempty"`
	Evidence string `json:"evidence,omitempty"`
}

// ProcessLog is one line of the per-product processing log.
type ProcessLog struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// ProcessedProduct is the working record for one inventory row.
type ProcessedProduct struct {
	Row      int           `json:"row"`
	SKU      string        `json:"sku"`
	EAN      string        `json:"ean"`
	ImageRef string        `json:"image_ref,omitempty"`
	Status   ProductStatus `json:"status"`

	// Candidates holds the local values gathered at batch build time.
	Candidates []CandidateValue `json:"candidates,omitempty"`
	// ManufacturerContext is the manufacturer row rendered for prompts.
	ManufacturerContext map[string]string `json:"manufacturer_context,omitempty"`
	// ManufacturerDescription is free text from the manufacturer file.
	ManufacturerDescription string `json:"manufacturer_description,omitempty"`

	Values        map[string]string     `json:"values"`
	Audit         map[string]SourceInfo `json:"audit"`
	GroundingURLs []string              `json:"grounding_urls,omitempty"`
	RawResponse   string                `json:"raw_response,omitempty"`
	Logs          []ProcessLog          `json:"logs,omitempty"`
	Error         string                `json:"error,omitempty"`
	Attempts      int                   `json:"attempts"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// NewProduct creates a pending product for an inventory row.
func NewProduct(row int, sku, ean string) *ProcessedProduct {
	return &ProcessedProduct{
		Row:    row,
		SKU:    sku,
		EAN:    ean,
		Status: ProductPending,
		Values: make(map[string]string),
		Audit:  make(map[string]SourceInfo),
	}
}

// SetField stores a value together with its audit record.
func (p *ProcessedProduct) SetField(name, value string, info SourceInfo) {
	p.ensureMaps()
	p.Values[name] = value
	p.Audit[name] = info
}

// SetEmpty records an unresolved field without a value.
func (p *ProcessedProduct) SetEmpty(name string, info SourceInfo) {
	p.ensureMaps()
	delete(p.Values, name)
	info.Status = StatusEmpty
	p.Audit[name] = info
}

// Has reports whether the field holds a non-empty value.
func (p *ProcessedProduct) Has(name string) bool {
	return p.Values[name] != ""
}

// AppendWarning adds warnings to an existing audit record.
func (p *ProcessedProduct) AppendWarning(name string, w ...Warning) {
	p.ensureMaps()
	info, ok := p.Audit[name]
	if !ok {
		return
	}
	info.AddWarning(w...)
	p.Audit[name] = info
}

// Log appends a processing log line.
func (p *ProcessedProduct) Log(level, msg string) {
	p.Logs = append(p.Logs, ProcessLog{Time: time.Now().UTC(), Level: level, Message: msg})
}

// Reset returns an errored product to pending, discarding its partial output.
// Completed products are left untouched; Reset reports whether it changed p.
func (p *ProcessedProduct) Reset() bool {
	if p.Status != ProductError {
		return false
	}
	p.Status = ProductPending
	p.Values = make(map[string]string)
	p.Audit = make(map[string]SourceInfo)
	p.GroundingURLs = nil
	p.RawResponse = ""
	p.Logs = nil
	p.Error = ""
	p.Attempts = 0
	return true
}

// Fail marks the product as errored.
func (p *ProcessedProduct) Fail(msg string) {
	p.Status = ProductError
	p.Error = msg
	p.Log("error", msg)
}

func (p *ProcessedProduct) ensureMaps() {
	if p.Values == nil {
		p.Values = make(map[string]string)
	}
	if p.Audit == nil {
		p.Audit = make(map[string]SourceInfo)
	}
}

// PdfPage is the extracted text of one page.
type PdfPage struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// ParsedPdf is the page-ordered text of one PDF file.
type ParsedPdf struct {
	FileName string    `json:"file_name"`
	Path     string    `json:"path,omitempty"`
	Pages    []PdfPage `json:"pages"`
}
