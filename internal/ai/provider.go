package ai

import (
	"context"
	"fmt"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// Request is one generation call. Zero Temperature/MaxTokens leave the
// provider defaults; an empty Model uses the provider's configured model.
type Request struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx answer from a provider. It is never retried.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
