package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/ai"
	"github.com/dhirajc963/timebrew.news/internal/config"
	"github.com/dhirajc963/timebrew.news/internal/db"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		DBDriver:           "sqlite",
		DBDSN:              "file::memory:",
		CuratorProvider:    "ollama",
		EditorProvider:     "ollama",
		OllamaBaseURL:      "http://127.0.0.1:11434",
		OllamaModel:        "llama3:latest",
		GenerationAttempts: 2,
		GenerationBackoff:  time.Millisecond,
		Invoker:            "inline",
	}
}

func TestRegistryProviders(t *testing.T) {
	reg := NewRegistry(testConfig(), log.NewStdLogger(io.Discard))
	assert.Equal(t, []string{"ollama", "openrouter", "perplexity"}, reg.Names())

	p, err := reg.Get(context.Background(), "ollama", "")
	require.NoError(t, err)
	assert.IsType(t, &ai.Retrying{}, p)

	_, err = reg.Get(context.Background(), "openrouter", "")
	assert.ErrorContains(t, err, "OPENROUTER_API_KEY")
}

func TestNewPipelineAndInvoker(t *testing.T) {
	cfg := testConfig()
	logger := log.NewStdLogger(io.Discard)
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	ctx := context.Background()
	p, err := NewPipeline(ctx, cfg, gdb, NewRegistry(cfg, logger), NewMailer(cfg), logger)
	require.NoError(t, err)
	require.NotNil(t, p.Runner)

	inv, closeFn, err := NewInvoker(cfg, p)
	require.NoError(t, err)
	require.NotNil(t, inv)
	require.NoError(t, closeFn())

	cfg.Invoker = "carrier-pigeon"
	_, _, err = NewInvoker(cfg, p)
	assert.Error(t, err)

	cfg.EditorProvider = "nope"
	_, err = NewPipeline(ctx, cfg, gdb, NewRegistry(cfg, logger), NewMailer(cfg), logger)
	assert.ErrorContains(t, err, "editor provider")
}
