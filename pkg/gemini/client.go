// Package gemini wraps the Google GenAI SDK for grounded generation.
package gemini

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// Client defines the Gemini operations used by the enricher.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is one generateContent call.
type Request struct {
	Model  string
	System string
	Parts  []Part
	// Search enables Google Search grounding.
	Search      bool
	Temperature *float32
}

// Part is a text or inline-data part. Data takes precedence over Text.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// Response is the flattened model reply.
type Response struct {
	Text string
	// GroundingURLs lists the web sources used by Search, in order, deduplicated.
	GroundingURLs []string
	Usage         TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// StatusCode returns the HTTP status of an API error in err's chain, or 0.
func StatusCode(err error) int {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code
	}
	return 0
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini API client. baseURL overrides the endpoint and
// may be empty.
func NewClient(ctx context.Context, apiKey, baseURL string) (Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: c}, nil
}

func (c *sdkClient) Generate(ctx context.Context, req Request) (*Response, error) {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if len(p.Data) > 0 {
			parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIMEType))
			continue
		}
		parts = append(parts, genai.NewPartFromText(p.Text))
	}

	cfg := &genai.GenerateContentConfig{Temperature: req.Temperature}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Search {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}
	return fromSDKResponse(resp), nil
}

func fromSDKResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{Text: resp.Text()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = TokenUsage{
			InputTokens:  int64(u.PromptTokenCount),
			OutputTokens: int64(u.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return out
	}
	seen := make(map[string]bool)
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		ref := chunk.Web.URI
		if ref == "" {
			ref = chunk.Web.Title
		}
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		out.GroundingURLs = append(out.GroundingURLs, ref)
	}
	return out
}
