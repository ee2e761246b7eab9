// Package app assembles the pipeline from configuration. Every binary
// builds its object graph through here.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dhirajc963/timebrew.news/internal/ai"
	"github.com/dhirajc963/timebrew.news/internal/config"
	"github.com/dhirajc963/timebrew.news/internal/email"
	"github.com/dhirajc963/timebrew.news/internal/feedback"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"github.com/dhirajc963/timebrew.news/internal/store/rabbitmq"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// NewRegistry registers every supported generation provider. Each
// provider comes back wrapped in the transient-failure retry policy.
func NewRegistry(cfg config.Config, logger log.Logger) *ai.Registry {
	reg := ai.NewRegistry()
	retry := func(p ai.Provider, name string) ai.Provider {
		return ai.WithRetry(p, cfg.GenerationAttempts, cfg.GenerationBackoff, log.With(logger, "module", "ai/"+name))
	}

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return retry(ai.NewOllamaProvider(cfg.OllamaBaseURL, m), "ollama"), nil
	})

	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("openrouter: OPENROUTER_API_KEY is empty")
		}
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return retry(ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), "openrouter"), nil
	})

	reg.Register("perplexity", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		if cfg.PerplexityAPIKey == "" {
			return nil, fmt.Errorf("perplexity: PERPLEXITY_API_KEY is empty")
		}
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.PerplexityModel
		}
		return retry(ai.NewPerplexityProvider(cfg.PerplexityBaseURL, cfg.PerplexityAPIKey, m), "perplexity"), nil
	})

	return reg
}

func NewMailer(cfg config.Config) email.Mailer {
	return email.NewSMTPMailer(email.SMTPConfig{
		Host:    cfg.SMTPHost,
		Port:    cfg.SMTPPort,
		User:    cfg.SMTPUser,
		Pass:    cfg.SMTPPass,
		From:    cfg.SMTPFrom,
		Timeout: cfg.SMTPTimeout,
	})
}

// Pipeline is the stage machinery shared by api, worker, scheduler and brewctl.
type Pipeline struct {
	Coord  *pipeline.Coordinator
	Runner *pipeline.Runner
}

func NewPipeline(ctx context.Context, cfg config.Config, db *gorm.DB, reg *ai.Registry, mailer email.Mailer, logger log.Logger) (*Pipeline, error) {
	curGen, err := reg.Get(ctx, cfg.CuratorProvider, cfg.CuratorModel)
	if err != nil {
		return nil, fmt.Errorf("curator provider: %w", err)
	}
	edGen, err := reg.Get(ctx, cfg.EditorProvider, cfg.EditorModel)
	if err != nil {
		return nil, fmt.Errorf("editor provider: %w", err)
	}

	curSettings := pipeline.CuratorDefaults()
	curSettings.Model = cfg.CuratorModel
	edSettings := pipeline.EditorDefaults()
	edSettings.Model = cfg.EditorModel

	coord := pipeline.NewCoordinator(db, logger)
	runner := pipeline.NewRunner(coord, logger,
		pipeline.NewCurator(db, coord, curGen, curSettings, feedback.NewService(db, logger), logger),
		pipeline.NewEditor(db, coord, edGen, edSettings, logger),
		pipeline.NewDispatcher(db, coord, mailer, logger),
	)
	return &Pipeline{Coord: coord, Runner: runner}, nil
}

// NewInvoker picks how stages are handed off: through the broker, or on
// goroutines of this process. The returned close func is never nil.
func NewInvoker(cfg config.Config, p *Pipeline) (pipeline.Invoker, func() error, error) {
	switch cfg.Invoker {
	case "inline":
		inv := pipeline.NewInlineInvoker(p.Runner)
		return inv, func() error {
			inv.Wait()
			return nil
		}, nil
	case "", "rabbitmq":
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq publisher: %w", err)
		}
		p.Runner.SetInvoker(pub)
		return pub, pub.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported STAGE_INVOKER=%q", cfg.Invoker)
	}
}
