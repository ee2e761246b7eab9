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
)

// OpenRouter and Perplexity both speak the OpenAI chat completions dialect.

type chatCompletionReq struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResp struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func chatCompletion(ctx context.Context, client *http.Client, name, baseURL string, headers map[string]string, model string, r Request) (string, error) {
	reqBody := chatCompletionReq{
		Model:     model,
		Messages:  r.Messages,
		MaxTokens: r.MaxTokens,
	}
	if r.Temperature > 0 {
		t := r.Temperature
		reqBody.Temperature = &t
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(baseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", &StatusError{Provider: name, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded chatCompletionResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", name)
	}
	return decoded.Choices[0].Message.Content, nil
}
