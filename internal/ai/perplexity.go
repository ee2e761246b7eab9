package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// PerplexityProvider talks to Perplexity's search-grounded models.
type PerplexityProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewPerplexityProvider(baseURL, apiKey, model string) *PerplexityProvider {
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}
	if model == "" {
		model = "sonar"
	}
	return &PerplexityProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *PerplexityProvider) Generate(ctx context.Context, r Request) (string, error) {
	if p.Client == nil {
		return "", errors.New("perplexity: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("perplexity: api key is required")
	}
	model := p.Model
	if r.Model != "" {
		model = r.Model
	}
	return chatCompletion(ctx, p.Client, "perplexity", p.BaseURL, map[string]string{
		"Authorization": "Bearer " + p.APIKey,
	}, model, r)
}
