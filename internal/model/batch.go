package model

import (
	"time"

	"github.com/google/uuid"
)

// Batch is one enrichment job: an inventory file, its manufacturer inputs,
// the schema in effect, and the products being processed.
type Batch struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Fields    []SchemaField `json:"fields"`
	Inputs    BatchInputs   `json:"inputs"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	Products []*ProcessedProduct `json:"-"`
}

// BatchInputs records where a batch's data came from so a retry can rebuild
// the PDF index without the original command line.
type BatchInputs struct {
	BaseFile         string            `json:"base_file"`
	ManufacturerFile string            `json:"manufacturer_file,omitempty"`
	PDFs             []string          `json:"pdfs,omitempty"`
	Mapping          map[string]string `json:"mapping,omitempty"`
	Brand            string            `json:"brand,omitempty"`
}

// BatchSummary is the list view of a stored batch.
type BatchSummary struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Counts    map[ProductStatus]int `json:"counts"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewBatch creates a batch with a fresh ID.
func NewBatch(name string, fields []SchemaField) *Batch {
	now := time.Now().UTC()
	return &Batch{
		ID:        uuid.New().String(),
		Name:      name,
		Fields:    fields,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Schema rebuilds the batch schema from its stored fields.
func (b *Batch) Schema() (*Schema, error) {
	return NewSchema(b.Fields)
}

// ResetFailed returns every errored product to pending and reports how many
// were reset. Completed products keep their results.
func (b *Batch) ResetFailed() int {
	n := 0
	for _, p := range b.Products {
		if p.Reset() {
			n++
		}
	}
	return n
}

// Counts tallies products by status.
func (b *Batch) Counts() map[ProductStatus]int {
	return CountStatuses(b.Products)
}

// Summary returns the list view of b.
func (b *Batch) Summary() BatchSummary {
	return BatchSummary{
		ID:        b.ID,
		Name:      b.Name,
		Counts:    b.Counts(),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

// CountStatuses tallies products by status.
func CountStatuses(products []*ProcessedProduct) map[ProductStatus]int {
	counts := make(map[ProductStatus]int, 4)
	for _, p := range products {
		counts[p.Status]++
	}
	return counts
}
