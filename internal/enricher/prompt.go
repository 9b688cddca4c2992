package enricher

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/catalog-enricher/internal/model"
)

// Attachment is an image followed by a caption telling the model how to use it.
type Attachment struct {
	Image   Image
	Caption string
}

// Prompt is a provider-neutral prompt. Instructions is identical for every
// product of a batch; Context and User vary per product.
type Prompt struct {
	Instructions string
	Context      string
	Attachments  []Attachment
	User         string
}

// System joins the instruction and context blocks.
func (p Prompt) System() string {
	if p.Context == "" {
		return p.Instructions
	}
	return p.Instructions + "\n\n" + p.Context
}

const instructions = `You are a technical data analyst completing e-commerce product sheets.

RULES
- SKU, EAN and brand are ground truth. Never contradict the KNOWN VALUES.
- Follow the SOURCE PRIORITY strictly: prefer a value from a higher source over a lower one.
- STRICT fields take only data found verbatim in a document, catalog page, manufacturer data or web page. If you cannot find it, return "".
- CREATIVE fields are fluent prose based only on real facts. Never invent features or figures.
- ALLOWED values: when a field lists them, answer with one of them or "".
- When generic web data conflicts with a trusted domain or the PDF, discard the generic web data.

SOURCE LABELS (mandatory in "sources")
- trusted domain: "Web: <domain>" (e.g. "Web: amazon.it")
- any other site: "Web: <domain> (⚠️ Non Verificato)"
- PDF catalog text or page image: "PDF (Pag <n>)"
- manufacturer data or description: "File Produttore"
- product photo: "Foto Prodotto"
- your own inference: "AI/Auto"

CATALOG PAGE IMAGES
When a PDF page image is attached, locate the row for the SKU and read the table columns from the image; use the raw text only to find the row.

OUTPUT
A single JSON object with two keys:
  "values":  {"<field name>": "<value>"}
  "sources": {"<field name>": "<source label>"}
Use "" for anything not found. Never write "NULL", "N/D" or "N/A". JSON only, no commentary.`

var sourceDescriptions = map[model.DataSourceType]string{
	model.SourceMapping:      "direct mapping (known values)",
	model.SourceManufacturer: "manufacturer data",
	model.SourcePDF:          "PDF catalogs (text and page image)",
	model.SourceWeb:          "web search",
	model.SourceImage:        "product photo",
	model.SourceDerived:      "values derived from other fields",
	model.SourceAI:           "your own inference",
}

type fieldSpec struct {
	Instruction   string `json:"instruction"`
	Mode          string `json:"mode"`
	AllowedValues any    `json:"allowed_values"`
}

// BuildPrompt renders req into a Prompt.
func BuildPrompt(req Request) Prompt {
	p := Prompt{Instructions: instructions}

	var b strings.Builder
	b.WriteString("SOURCE PRIORITY\n")
	for i, t := range req.Priority {
		fmt.Fprintf(&b, "%d. %s\n", i+1, sourceDescriptions[t])
	}

	fmt.Fprintf(&b, "\nTRUSTED DOMAINS: %s\n", orNone(strings.Join(req.TrustedDomains, ", ")))

	b.WriteString("\nFIELDS TO FILL\n")
	b.WriteString(mustJSON(fieldSpecs(req.Fields)))

	b.WriteString("\n\nINPUT\n")
	if req.Brand != "" {
		fmt.Fprintf(&b, "- Brand: %s\n", req.Brand)
	}
	fmt.Fprintf(&b, "- SKU: %s\n", req.SKU)
	fmt.Fprintf(&b, "- EAN: %s\n", orNone(req.EAN))
	fmt.Fprintf(&b, "- Known values: %s\n", jsonOrNone(req.Known))
	fmt.Fprintf(&b, "- Manufacturer data: %s\n", jsonOrNone(req.Manufacturer))
	fmt.Fprintf(&b, "- Manufacturer description: %s\n", orNone(req.ManufacturerDescription))
	if req.PDFText != "" {
		fmt.Fprintf(&b, "- PDF text (%s):\n%s\n", req.PDFLabel, req.PDFText)
	} else {
		b.WriteString("- PDF text: none\n")
	}
	p.Context = b.String()

	if req.PDFPage != nil {
		p.Attachments = append(p.Attachments, Attachment{
			Image: *req.PDFPage,
			Caption: fmt.Sprintf("[PDF CATALOG PAGE %s] High resolution page holding the technical table for SKU %s. "+
				"Watch the weight, packaging, IP and energy class columns.", req.PDFLabel, req.SKU),
		})
	}
	if req.ProductImage != nil {
		p.Attachments = append(p.Attachments, Attachment{
			Image:   *req.ProductImage,
			Caption: "[PRODUCT PHOTO] Use it only for shape, color and finish.",
		})
	}

	var u strings.Builder
	fmt.Fprintf(&u, "Analyze the product. Ground truth: SKU %s, EAN %s, brand %s.", req.SKU, orNone(req.EAN), orDefault(req.Brand, "unknown"))
	if req.ManufacturerDescription != "" {
		u.WriteString(" Read the manufacturer description.")
	}
	if req.PDFText != "" {
		u.WriteString(" The PDF text above mentions this product.")
	}
	if req.PDFPage != nil {
		u.WriteString(" Use the PDF text to find the row, but read the values from the page image.")
	}
	fmt.Fprintf(&u, " Search the web (prefer: %s) to complete the missing fields and flag untrusted sources in \"sources\".",
		orNone(strings.Join(req.TrustedDomains, ", ")))
	p.User = u.String()

	return p
}

func fieldSpecs(fields []model.SchemaField) map[string]fieldSpec {
	out := make(map[string]fieldSpec, len(fields))
	for _, f := range fields {
		spec := fieldSpec{Instruction: strings.TrimSpace(f.Prompt), AllowedValues: "any"}
		switch {
		case f.Strict() && f.Policy == model.PolicyAllowInfer:
			spec.Mode = "STRICT (may be computed from documented values)"
		case f.Strict():
			spec.Mode = "STRICT"
		default:
			spec.Mode = "CREATIVE"
		}
		if len(f.AllowedValues) > 0 {
			spec.AllowedValues = f.AllowedValues
		}
		out[f.Name] = spec
	}
	return out
}

func jsonOrNone(m map[string]string) string {
	if len(m) == 0 {
		return "none"
	}
	return mustJSON(m)
}

// mustJSON encodes maps and plain structs, which cannot fail.
func mustJSON(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func orNone(s string) string { return orDefault(s, "none") }

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
