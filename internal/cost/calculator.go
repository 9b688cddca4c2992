package cost

import (
	"github.com/sells-group/catalog-enricher/internal/config"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     map[string]ModelRate `yaml:"gemini" mapstructure:"gemini"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// PerplexityRate holds Perplexity pricing.
type PerplexityRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Usage is the token and call consumption of one or more enrichment calls.
type Usage struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Calls        int    `json:"calls"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

// Add accumulates o into u. Provider and model are taken from o when u has
// none yet.
func (u *Usage) Add(o Usage) {
	if u.Provider == "" {
		u.Provider = o.Provider
	}
	if u.Model == "" {
		u.Model = o.Model
	}
	u.Calls += o.Calls
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of Claude token usage.
func (c *Calculator) Claude(model string, input, output int64) float64 {
	return tokens(c.rates.Anthropic, model, input, output)
}

// Gemini computes the cost of Gemini token usage.
func (c *Calculator) Gemini(model string, input, output int64) float64 {
	return tokens(c.rates.Gemini, model, input, output)
}

// PerplexityQuery returns the flat cost per Perplexity query.
func (c *Calculator) PerplexityQuery() float64 {
	return c.rates.Perplexity.PerQuery
}

// Estimate prices a Usage by its provider. Unknown providers and models cost 0.
func (c *Calculator) Estimate(u Usage) float64 {
	switch u.Provider {
	case "anthropic":
		return c.Claude(u.Model, u.InputTokens, u.OutputTokens)
	case "gemini":
		return c.Gemini(u.Model, u.InputTokens, u.OutputTokens)
	case "perplexity":
		return float64(u.Calls) * c.PerplexityQuery()
	default:
		return 0
	}
}

func tokens(rates map[string]ModelRate, model string, input, output int64) float64 {
	rate, ok := rates[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
		Gemini: map[string]ModelRate{
			"gemini-2.5-flash":      {Input: 0.30, Output: 2.50},
			"gemini-2.5-flash-lite": {Input: 0.10, Output: 0.40},
			"gemini-2.5-pro":        {Input: 1.25, Output: 10.00},
		},
		Perplexity: PerplexityRate{PerQuery: 0.005},
	}
}

// RatesFromConfig overlays configured prices on the defaults.
func RatesFromConfig(cfg config.PricingConfig) Rates {
	r := DefaultRates()
	for m, p := range cfg.Anthropic {
		r.Anthropic[m] = ModelRate{Input: p.Input, Output: p.Output}
	}
	for m, p := range cfg.Gemini {
		r.Gemini[m] = ModelRate{Input: p.Input, Output: p.Output}
	}
	if cfg.Perplexity.PerQuery > 0 {
		r.Perplexity.PerQuery = cfg.Perplexity.PerQuery
	}
	return r
}
