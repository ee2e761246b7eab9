package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"hello"}}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3:latest")
	out, err := p.Generate(context.Background(), Request{
		Messages:    []Message{System("be brief"), User("hi")},
		Temperature: 0.2,
		MaxTokens:   4000,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	assert.Equal(t, "llama3:latest", got["model"])
	assert.Equal(t, false, got["stream"])
	opts := got["options"].(map[string]any)
	assert.Equal(t, 0.2, opts["temperature"])
	assert.Equal(t, float64(4000), opts["num_predict"])
	assert.Len(t, got["messages"], 2)
}

func TestOllamaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "").Generate(context.Background(), Request{Messages: []Message{User("hi")}})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, "model not found", se.Body)
	assert.False(t, IsTransient(err))
}

func TestOpenRouterGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "TimeBrew", r.Header.Get("X-Title"))
		assert.Empty(t, r.Header.Get("HTTP-Referer"))

		var body chatCompletionReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "override/model", body.Model)
		require.NotNil(t, body.Temperature)
		assert.Equal(t, 0.7, *body.Temperature)
		assert.Equal(t, 3000, body.MaxTokens)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"draft"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "key", "openrouter/auto", "", "TimeBrew")
	out, err := p.Generate(context.Background(), Request{
		Messages:    []Message{User("write")},
		Model:       "override/model",
		Temperature: 0.7,
		MaxTokens:   3000,
	})
	require.NoError(t, err)
	assert.Equal(t, "draft", out)
}

func TestOpenRouterRequiresKey(t *testing.T) {
	_, err := NewOpenRouterProvider("", "", "m", "", "").Generate(context.Background(), Request{})
	assert.Error(t, err)
}

func TestPerplexityEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatCompletionReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sonar", body.Model)
		assert.Nil(t, body.Temperature)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewPerplexityProvider(srv.URL, "key", "").Generate(context.Background(), Request{Messages: []Message{User("q")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestRequestTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewPerplexityProvider(srv.URL, "key", "").Generate(context.Background(), Request{
		Messages: []Message{User("q")},
		Timeout:  50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Fake ", func(ctx context.Context, model string) (Provider, error) {
		return NewOllamaProvider("", model), nil
	})
	reg.Register("other", func(ctx context.Context, model string) (Provider, error) {
		return nil, errors.New("boom")
	})

	p, err := reg.Get(context.Background(), "FAKE", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", p.(*OllamaProvider).Model)

	_, err = reg.Get(context.Background(), "missing", "")
	assert.Error(t, err)
	assert.Equal(t, []string{"fake", "other"}, reg.Names())
}
