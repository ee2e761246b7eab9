package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/ai"
	"github.com/dhirajc963/timebrew.news/internal/models"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Editor struct {
	db       *gorm.DB
	coord    *Coordinator
	gen      ai.Provider
	settings GenerationSettings
	log      *log.Helper
	now      func() time.Time
}

func NewEditor(db *gorm.DB, coord *Coordinator, gen ai.Provider, settings GenerationSettings, logger log.Logger) *Editor {
	return &Editor{
		db:       db,
		coord:    coord,
		gen:      gen,
		settings: settings,
		log:      log.NewHelper(log.With(logger, "module", "pipeline/editor")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (w *Editor) Stage() Stage { return StageEditor }

func (w *Editor) Run(ctx context.Context, runID string) Outcome {
	run, out, ok := claim(ctx, w.db, runID, StageEditor)
	if !ok {
		return out
	}
	db := w.db.WithContext(ctx)

	var cur CuratorLog
	if err := db.Where("run_id = ?", runID).First(&cur).Error; err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageEditor, fmt.Errorf("load curator output: %w", err))
	}
	if cur.ParsedAt == nil {
		return outcomeErr(OutcomeStoreError, runID, StageEditor, errors.New("curator output was never parsed"))
	}
	articles, err := cur.ArticleList()
	if err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageEditor, fmt.Errorf("decode curator articles: %w", err))
	}

	var brew models.Brew
	if err := db.First(&brew, run.BrewID).Error; err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageEditor, fmt.Errorf("load brew %d: %w", run.BrewID, err))
	}
	var user models.User
	if err := db.First(&user, run.UserID).Error; err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageEditor, fmt.Errorf("load user %d: %w", run.UserID, err))
	}

	system, prompt := buildEditorPrompt(&brew, &user, articles, cur.CuratorNotes)
	start := time.Now()
	raw, err := w.gen.Generate(ctx, w.settings.request(ai.System(system), ai.User(prompt)))
	if err != nil {
		return outcomeErr(OutcomeUpstreamError, runID, StageEditor, fmt.Errorf("editor generation: %w", err))
	}

	rec := &EditorLog{
		RunID:       runID,
		BrewID:      run.BrewID,
		UserID:      run.UserID,
		Draft:       datatypes.JSON("{}"),
		RawResponse: raw,
		Prompt:      promptText(system, prompt),
		Model:       w.settings.Model,
		RuntimeMS:   time.Since(start).Milliseconds(),
	}
	if out, ok := insertLog(ctx, w.db, runID, StageEditor, rec); !ok {
		return out
	}

	draft, err := parseDraft(raw)
	if err != nil {
		return outcomeErr(OutcomeParseError, runID, StageEditor, fmt.Errorf("editor output: %w", err))
	}
	b, err := json.Marshal(draft)
	if err != nil {
		return outcomeErr(OutcomeParseError, runID, StageEditor, err)
	}

	if err := db.Model(rec).Updates(map[string]any{
		"draft":     datatypes.JSON(b),
		"subject":   draft.Subject,
		"parsed_at": w.now(),
	}).Error; err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageEditor, err)
	}

	if err := w.coord.Advance(ctx, runID, StageEditor, StageDispatcher); err != nil {
		return fromAdvanceErr(runID, StageEditor, err)
	}
	w.log.WithContext(ctx).Infow("msg", "edited", "run_id", runID, "articles_in", len(articles),
		"articles_out", len(draft.Articles), "runtime_ms", rec.RuntimeMS)
	return outcomeOK(runID, StageEditor, StageDispatcher)
}

// parseDraft decodes and validates an editor reply. Positions are
// renumbered 1..n in the order given.
func parseDraft(raw string) (Draft, error) {
	var d Draft
	if err := ai.DecodeJSON(raw, &d); err != nil {
		return Draft{}, err
	}
	d.Subject = strings.TrimSpace(d.Subject)
	d.Intro = strings.TrimSpace(d.Intro)
	d.Outro = strings.TrimSpace(d.Outro)
	if d.Subject == "" {
		return Draft{}, errors.New("draft has no subject")
	}
	if d.Intro == "" {
		return Draft{}, errors.New("draft has no intro")
	}
	d.Subject = truncate(d.Subject, 255)
	if d.Articles == nil {
		d.Articles = []DraftArticle{}
	}
	for i := range d.Articles {
		d.Articles[i].Position = i + 1
		if strings.TrimSpace(d.Articles[i].Headline) == "" {
			return Draft{}, fmt.Errorf("article %d has no headline", i+1)
		}
	}
	return d, nil
}
