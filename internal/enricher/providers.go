package enricher

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-enricher/internal/config"
	"github.com/sells-group/catalog-enricher/internal/cost"
	"github.com/sells-group/catalog-enricher/internal/resilience"
	"github.com/sells-group/catalog-enricher/pkg/anthropic"
	"github.com/sells-group/catalog-enricher/pkg/gemini"
	"github.com/sells-group/catalog-enricher/pkg/perplexity"
)

// Provider names.
const (
	ProviderGemini     = "gemini"
	ProviderAnthropic  = "anthropic"
	ProviderPerplexity = "perplexity"
)

// New creates an Enricher for the configured provider.
func New(ctx context.Context, cfg *config.Config) (*Enricher, error) {
	switch strings.ToLower(cfg.Enrich.Provider) {
	case "", ProviderGemini:
		c, err := gemini.NewClient(ctx, cfg.Gemini.Key, "")
		if err != nil {
			return nil, eris.Wrap(err, "enricher: gemini client")
		}
		temp := float32(cfg.Gemini.Temperature)
		return NewWithModel(&GeminiModel{Client: c, Model: cfg.Gemini.Model, Temperature: &temp}), nil
	case ProviderAnthropic:
		return NewWithModel(&AnthropicModel{
			Client:    anthropic.NewClient(cfg.Anthropic.Key),
			Model:     cfg.Anthropic.Model,
			MaxTokens: int64(cfg.Anthropic.MaxTokens),
		}), nil
	case ProviderPerplexity:
		return NewWithModel(&PerplexityModel{
			Client: perplexity.NewClient(cfg.Perplexity.Key,
				perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
				perplexity.WithModel(cfg.Perplexity.Model)),
			Model: cfg.Perplexity.Model,
		}), nil
	default:
		return nil, eris.Errorf("enricher: unknown provider %q", cfg.Enrich.Provider)
	}
}

// classify maps a provider error onto the resilience classes.
func classify(err error, status int) error {
	if err == nil {
		return nil
	}
	if status != 0 {
		err = resilience.FromStatus(status, err)
	}
	return resilience.FromContext(err)
}

// GeminiModel calls Gemini with Google Search grounding.
type GeminiModel struct {
	Client      gemini.Client
	Model       string
	Temperature *float32
}

// Provider implements Model.
func (m *GeminiModel) Provider() string { return ProviderGemini }

// Call implements Model.
func (m *GeminiModel) Call(ctx context.Context, p Prompt) (*Reply, error) {
	parts := make([]gemini.Part, 0, 2*len(p.Attachments)+1)
	for _, a := range p.Attachments {
		parts = append(parts,
			gemini.Part{Data: a.Image.Data, MIMEType: a.Image.MIMEType},
			gemini.Part{Text: a.Caption})
	}
	parts = append(parts, gemini.Part{Text: p.User})

	resp, err := m.Client.Generate(ctx, gemini.Request{
		Model:       m.Model,
		System:      p.System(),
		Parts:       parts,
		Search:      true,
		Temperature: m.Temperature,
	})
	if err != nil {
		return nil, classify(err, gemini.StatusCode(err))
	}
	return &Reply{
		Text:          resp.Text,
		GroundingURLs: resp.GroundingURLs,
		Usage: cost.Usage{
			Provider:     ProviderGemini,
			Model:        m.Model,
			Calls:        1,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// anthropicImageTypes are the media types the Messages API accepts.
var anthropicImageTypes = map[string]bool{
	"image/jpeg": true, "image/png": true, "image/gif": true, "image/webp": true,
}

// AnthropicModel calls Claude. It has no web search, so hints are limited
// to the supplied documents.
type AnthropicModel struct {
	Client    anthropic.Client
	Model     string
	MaxTokens int64
}

// Provider implements Model.
func (m *AnthropicModel) Provider() string { return ProviderAnthropic }

// Call implements Model.
func (m *AnthropicModel) Call(ctx context.Context, p Prompt) (*Reply, error) {
	msg := anthropic.Message{Role: "user"}
	var captions []string
	for _, a := range p.Attachments {
		if !anthropicImageTypes[a.Image.MIMEType] {
			continue
		}
		msg.Images = append(msg.Images, anthropic.Image{MediaType: a.Image.MIMEType, Data: a.Image.Data})
		captions = append(captions, a.Caption)
	}
	msg.Content = strings.Join(append(captions, p.User), "\n\n")

	maxTokens := m.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	resp, err := m.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     m.Model,
		MaxTokens: maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(p.Instructions, p.Context),
		Messages:  []anthropic.Message{msg},
	})
	if err != nil {
		return nil, classify(err, anthropic.StatusCode(err))
	}
	return &Reply{
		Text: resp.Text(),
		Usage: cost.Usage{
			Provider:     ProviderAnthropic,
			Model:        m.Model,
			Calls:        1,
			InputTokens:  resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// PerplexityModel calls Perplexity's search-backed chat. Images are not sent.
type PerplexityModel struct {
	Client perplexity.Client
	Model  string
}

// Provider implements Model.
func (m *PerplexityModel) Provider() string { return ProviderPerplexity }

// Call implements Model.
func (m *PerplexityModel) Call(ctx context.Context, p Prompt) (*Reply, error) {
	resp, err := m.Client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: m.Model,
		Messages: []perplexity.Message{
			{Role: "system", Content: p.System()},
			{Role: "user", Content: p.User},
		},
	})
	if err != nil {
		var se *perplexity.StatusError
		if !errors.As(err, &se) {
			return nil, classify(err, 0)
		}
		if se.StatusCode == http.StatusTooManyRequests {
			return nil, &resilience.RateLimitError{Err: err, RetryAfter: se.RetryAfter}
		}
		return nil, classify(err, se.StatusCode)
	}
	return &Reply{
		Text:          resp.Text(),
		GroundingURLs: resp.Citations,
		Usage: cost.Usage{
			Provider:     ProviderPerplexity,
			Model:        m.Model,
			Calls:        1,
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}, nil
}
