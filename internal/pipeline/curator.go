package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/ai"
	"github.com/dhirajc963/timebrew.news/internal/models"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	noRepeatRuns     = 5
	feedbackLookback = 10
)

// FeedbackHint is one recent reaction the curator can steer by.
type FeedbackHint struct {
	Type   string
	Title  string
	Source string
}

// FeedbackSource supplies a user's most recent reactions, newest first.
type FeedbackSource interface {
	RecentFeedback(ctx context.Context, userID uint64, limit int) ([]FeedbackHint, error)
}

type curatorResponse struct {
	Articles     []Article `json:"articles"`
	CuratorNotes string    `json:"curator_notes"`
}

type Curator struct {
	db       *gorm.DB
	coord    *Coordinator
	gen      ai.Provider
	settings GenerationSettings
	feedback FeedbackSource
	log      *log.Helper
	now      func() time.Time
}

func NewCurator(db *gorm.DB, coord *Coordinator, gen ai.Provider, settings GenerationSettings, fb FeedbackSource, logger log.Logger) *Curator {
	return &Curator{
		db:       db,
		coord:    coord,
		gen:      gen,
		settings: settings,
		feedback: fb,
		log:      log.NewHelper(log.With(logger, "module", "pipeline/curator")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (w *Curator) Stage() Stage { return StageCurator }

func (w *Curator) Run(ctx context.Context, runID string) Outcome {
	run, out, ok := claim(ctx, w.db, runID, StageCurator)
	if !ok {
		return out
	}
	db := w.db.WithContext(ctx)

	var brew models.Brew
	if err := db.First(&brew, run.BrewID).Error; err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageCurator, fmt.Errorf("load brew %d: %w", run.BrewID, err))
	}
	var user models.User
	if err := db.First(&user, run.UserID).Error; err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageCurator, fmt.Errorf("load user %d: %w", run.UserID, err))
	}

	cc := curatorContext{Brew: &brew, User: &user, Now: w.now(), NoRepeat: w.noRepeat(ctx, user.ID)}
	w.applyFeedback(ctx, user.ID, &cc)

	system, prompt := buildCuratorPrompt(cc)
	start := time.Now()
	raw, err := w.gen.Generate(ctx, w.settings.request(ai.System(system), ai.User(prompt)))
	if err != nil {
		return outcomeErr(OutcomeUpstreamError, runID, StageCurator, fmt.Errorf("curator generation: %w", err))
	}

	rec := &CuratorLog{
		RunID:       runID,
		BrewID:      run.BrewID,
		UserID:      run.UserID,
		Articles:    datatypes.JSON("[]"),
		RawResponse: raw,
		Prompt:      promptText(system, prompt),
		Model:       w.settings.Model,
		RuntimeMS:   time.Since(start).Milliseconds(),
	}
	if out, ok := insertLog(ctx, w.db, runID, StageCurator, rec); !ok {
		return out
	}

	var parsed curatorResponse
	if err := ai.DecodeJSON(raw, &parsed); err != nil {
		return outcomeErr(OutcomeParseError, runID, StageCurator, fmt.Errorf("curator output: %w", err))
	}
	if parsed.Articles == nil {
		parsed.Articles = []Article{}
	}
	articles, err := json.Marshal(parsed.Articles)
	if err != nil {
		return outcomeErr(OutcomeParseError, runID, StageCurator, err)
	}

	parsedAt := w.now()
	if err := db.Model(rec).Updates(map[string]any{
		"articles":      datatypes.JSON(articles),
		"article_count": len(parsed.Articles),
		"curator_notes": strings.TrimSpace(parsed.CuratorNotes),
		"parsed_at":     parsedAt,
	}).Error; err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageCurator, err)
	}

	if err := w.coord.Advance(ctx, runID, StageCurator, StageEditor); err != nil {
		return fromAdvanceErr(runID, StageCurator, err)
	}
	w.log.WithContext(ctx).Infow("msg", "curated", "run_id", runID, "articles", len(parsed.Articles),
		"runtime_ms", rec.RuntimeMS)
	return outcomeOK(runID, StageCurator, StageEditor)
}

// noRepeat collects headlines from the user's last completed runs. Errors
// only cost the hint, never the stage.
func (w *Curator) noRepeat(ctx context.Context, userID uint64) []string {
	var logs []CuratorLog
	err := w.db.WithContext(ctx).
		Table("curator_logs").
		Select("curator_logs.*").
		Joins("JOIN brew_runs ON brew_runs.run_id = curator_logs.run_id").
		Where("brew_runs.user_id = ? AND brew_runs.current_stage = ? AND curator_logs.parsed_at IS NOT NULL",
			userID, string(StageCompleted)).
		Order("brew_runs.created_at DESC").
		Limit(noRepeatRuns).
		Find(&logs).Error
	if err != nil {
		w.log.WithContext(ctx).Warnw("msg", "no-repeat lookup failed", "user_id", userID, "err", err)
		return nil
	}

	seen := map[string]bool{}
	var out []string
	for i := range logs {
		arts, err := logs[i].ArticleList()
		if err != nil {
			continue
		}
		for _, a := range arts {
			h := strings.TrimSpace(a.Headline)
			if h == "" || seen[h] {
				continue
			}
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

func (w *Curator) applyFeedback(ctx context.Context, userID uint64, cc *curatorContext) {
	if w.feedback == nil {
		return
	}
	hints, err := w.feedback.RecentFeedback(ctx, userID, feedbackLookback)
	if err != nil {
		w.log.WithContext(ctx).Warnw("msg", "feedback lookup failed", "user_id", userID, "err", err)
		return
	}
	for _, h := range hints {
		label := h.Title
		if label == "" {
			continue
		}
		if h.Source != "" {
			label += " (" + h.Source + ")"
		}
		switch h.Type {
		case "like":
			cc.Liked = append(cc.Liked, label)
		case "dislike":
			cc.Disliked = append(cc.Disliked, label)
		}
	}
}
