package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaChatReq struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResp struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}

func (p *OllamaProvider) Generate(ctx context.Context, r Request) (string, error) {
	if p.Client == nil {
		return "", errors.New("ollama: http client is nil")
	}
	model := p.Model
	if r.Model != "" {
		model = r.Model
	}

	opts := map[string]any{}
	if r.Temperature > 0 {
		opts["temperature"] = r.Temperature
	}
	if r.MaxTokens > 0 {
		opts["num_predict"] = r.MaxTokens
	}
	reqBody := ollamaChatReq{
		Model:    model,
		Stream:   false,
		Messages: r.Messages,
		Options:  opts,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/chat", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", &StatusError{Provider: "ollama", Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	return decoded.Message.Content, nil
}
