// Package enricher asks a generative model to fill the fields local sources
// could not resolve.
package enricher

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-enricher/internal/cost"
	"github.com/sells-group/catalog-enricher/internal/model"
)

// ErrMalformedResponse is returned when the model reply holds no usable JSON.
var ErrMalformedResponse = eris.New("enricher: malformed response")

// Image is an inline image sent with the prompt.
type Image struct {
	MIMEType string
	Data     []byte
}

// Request is everything known about one product before the external call.
type Request struct {
	SKU   string
	EAN   string
	Brand string
	// Fields are the unresolved fields to fill, in schema order.
	Fields []model.SchemaField
	// Known holds already resolved values the model must not contradict.
	Known map[string]string

	Manufacturer            map[string]string
	ManufacturerDescription string

	PDFText  string
	PDFLabel string
	PDFPage  *Image

	ProductImage *Image

	TrustedDomains []string
	Priority       []model.DataSourceType
}

// Response is the parsed model reply.
type Response struct {
	// Values maps field name to the proposed raw value. Null-like values
	// are already blanked.
	Values map[string]string
	// Hints maps field name to the model's source claim, e.g. "Web: amazon.it".
	Hints         map[string]string
	GroundingURLs []string
	Usage         cost.Usage
	Raw           string
}

// Reply is a provider's raw answer.
type Reply struct {
	Text          string
	GroundingURLs []string
	Usage         cost.Usage
}

// Model is one generative provider.
type Model interface {
	Provider() string
	Call(ctx context.Context, p Prompt) (*Reply, error)
}

// Enricher builds prompts, calls a Model and parses its reply.
type Enricher struct {
	model Model
}

// NewWithModel creates an Enricher over an existing Model.
func NewWithModel(m Model) *Enricher {
	return &Enricher{model: m}
}

// Provider names the underlying provider.
func (e *Enricher) Provider() string { return e.model.Provider() }

// Enrich runs one external call for req. Provider failures come back
// classified by the resilience package. When the reply cannot be parsed the
// error wraps ErrMalformedResponse and the returned Response still carries
// Raw and Usage.
func (e *Enricher) Enrich(ctx context.Context, req Request) (*Response, error) {
	if len(req.Fields) == 0 {
		return &Response{Values: map[string]string{}, Hints: map[string]string{}}, nil
	}

	reply, err := e.model.Call(ctx, BuildPrompt(req))
	if err != nil {
		return nil, err
	}

	out := &Response{
		GroundingURLs: dedupe(reply.GroundingURLs),
		Usage:         reply.Usage,
		Raw:           reply.Text,
	}
	out.Values, out.Hints, err = ParseReply(reply.Text)
	if err != nil {
		return out, eris.Wrapf(err, "enricher: parse reply for SKU %s", req.SKU)
	}

	zap.L().Debug("enrichment reply parsed",
		zap.String("sku", req.SKU),
		zap.String("provider", e.model.Provider()),
		zap.Int("values", len(out.Values)),
		zap.Int("grounding_urls", len(out.GroundingURLs)),
	)
	return out, nil
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
