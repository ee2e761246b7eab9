package handlers

import (
	"github.com/dhirajc963/timebrew.news/internal/brew"
	"github.com/dhirajc963/timebrew.news/internal/briefing"
	"github.com/dhirajc963/timebrew.news/internal/config"
	"github.com/dhirajc963/timebrew.news/internal/feedback"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"github.com/dhirajc963/timebrew.news/internal/scheduler"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// Deps are the pipeline pieces built by the caller; the handler builds
// the plain CRUD services itself.
type Deps struct {
	Coord   *pipeline.Coordinator
	Invoker pipeline.Invoker
	Limiter scheduler.Limiter
}

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Coord       *pipeline.Coordinator
	BrewSvc     *brew.Service
	BriefingSvc *briefing.Service
	FeedbackSvc *feedback.Service
	Trigger     *scheduler.Trigger

	log *log.Helper
}

func NewHandler(db *gorm.DB, cfg config.Config, deps Deps, logger log.Logger) *Handler {
	coord := deps.Coord
	if coord == nil {
		coord = pipeline.NewCoordinator(db, logger)
	}
	return &Handler{
		DB:          db,
		Cfg:         cfg,
		Coord:       coord,
		BrewSvc:     brew.NewService(db, logger),
		BriefingSvc: briefing.NewService(db),
		FeedbackSvc: feedback.NewService(db, logger),
		Trigger:     scheduler.NewTrigger(coord, deps.Invoker, deps.Limiter, cfg.TriggerCooldown, logger),
		log:         log.NewHelper(log.With(logger, "module", "httpapi")),
	}
}
