package enricher

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-enricher/internal/cost"
	"github.com/sells-group/catalog-enricher/internal/model"
)

const (
	explainInstructions = `You write short help texts for the users of an e-commerce import tool.
Explain in at most 25 words, in a professional tone, what the given data field is for and what to expect in it.
Reply with the explanation only, no quotes and no markdown.`

	maxExplanationWords = 40
)

// ExplainField asks the model for a short user-facing explanation of f.
func (e *Enricher) ExplainField(ctx context.Context, f model.SchemaField) (string, cost.Usage, error) {
	if strings.TrimSpace(f.Name) == "" {
		return "", cost.Usage{}, eris.New("enricher: field has no name")
	}

	reply, err := e.model.Call(ctx, Prompt{
		Instructions: explainInstructions,
		User:         describeField(f),
	})
	if err != nil {
		return "", cost.Usage{}, err
	}

	text := strings.Trim(strings.TrimSpace(reply.Text), "\"'`")
	if text == "" {
		return "", reply.Usage, eris.Wrap(ErrMalformedResponse, "empty explanation")
	}
	if words := strings.Fields(text); len(words) > maxExplanationWords {
		text = strings.Join(words[:maxExplanationWords], " ") + "…"
	}
	return text, reply.Usage, nil
}

func describeField(f model.SchemaField) string {
	kind := "creative or generated content"
	if f.Strict() {
		kind = "strict technical data"
	}
	allowed := "free text"
	if len(f.AllowedValues) > 0 {
		allowed = strings.Join(f.AllowedValues, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "NAME: %s\n", f.Name)
	fmt.Fprintf(&b, "TECHNICAL DESCRIPTION: %s\n", f.Description)
	fmt.Fprintf(&b, "EXTRACTION PROMPT: %s\n", f.Prompt)
	fmt.Fprintf(&b, "TYPE: %s\n", kind)
	fmt.Fprintf(&b, "ALLOWED VALUES: %s\n", allowed)
	return b.String()
}
