package enricher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-enricher/internal/cost"
	"github.com/sells-group/catalog-enricher/internal/model"
)

const suggestInstructions = `You configure e-commerce import schemas.
For every column header you receive, describe how an extraction model should fill it.
Return ONLY a JSON array with one object per header, in input order:
  {"name": "<exact header>", "description": "<short purpose>", "prompt": "<extraction instruction>",
   "strict": <true for technical data such as sizes, codes, numbers; false for prose such as titles>,
   "allowed_values": [<fixed choices, or empty>]}`

type suggestedField struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Prompt        string   `json:"prompt"`
	Strict        bool     `json:"strict"`
	AllowedValues []string `json:"allowed_values"`
}

// SuggestSchema drafts schema fields for a table's headers. Strict fields
// become HARD/REQUIRED_EVIDENCE, the rest SOFT/CREATIVE_ONLY. Headers the
// model skipped are added with an empty prompt.
func (e *Enricher) SuggestSchema(ctx context.Context, headers []string) ([]model.SchemaField, cost.Usage, error) {
	if len(headers) == 0 {
		return nil, cost.Usage{}, eris.New("enricher: no headers to describe")
	}
	raw, _ := json.Marshal(headers)

	reply, err := e.model.Call(ctx, Prompt{
		Instructions: suggestInstructions,
		User:         "Describe these column headers: " + string(raw),
	})
	if err != nil {
		return nil, cost.Usage{}, err
	}

	arr, ok := cleanJSON(reply.Text, '[', ']')
	if !ok {
		return nil, reply.Usage, eris.Wrap(ErrMalformedResponse, "no JSON array in schema reply")
	}
	var suggested []suggestedField
	if err := json.Unmarshal([]byte(arr), &suggested); err != nil {
		return nil, reply.Usage, eris.Wrapf(ErrMalformedResponse, "decode schema reply: %v", err)
	}

	byName := make(map[string]suggestedField, len(suggested))
	for _, s := range suggested {
		byName[strings.TrimSpace(s.Name)] = s
	}

	fields := make([]model.SchemaField, 0, len(headers))
	for i, h := range headers {
		s := byName[h]
		f := model.SchemaField{
			ID:            fmt.Sprintf("h%d", i+1),
			Name:          h,
			Description:   s.Description,
			Prompt:        s.Prompt,
			Enabled:       true,
			Class:         model.ClassSoft,
			Policy:        model.PolicyCreativeOnly,
			AllowedValues: s.AllowedValues,
		}
		if s.Strict {
			f.Class = model.ClassHard
			f.Policy = model.PolicyRequiredEvidence
		}
		fields = append(fields, f)
	}
	return fields, reply.Usage, nil
}
