package briefing

import (
	"context"
	"errors"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/models"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Summary is one row in a brew's briefing history.
type Summary struct {
	RunID         string         `json:"run_id"`
	Subject       string         `json:"subject"`
	Stage         pipeline.Stage `json:"stage"`
	ArticleCount  int            `json:"article_count"`
	EmailSent     bool           `json:"email_sent"`
	EmailSentTime *time.Time     `json:"email_sent_time"`
	CreatedAt     time.Time      `json:"created_at"`
}

type Page struct {
	Items  []Summary `json:"items"`
	Total  int64     `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

type Detail struct {
	Run           pipeline.Run    `json:"run"`
	Subject       string          `json:"subject"`
	Draft         *pipeline.Draft `json:"draft"`
	CuratorNotes  string          `json:"curator_notes"`
	ArticleCount  int             `json:"article_count"`
	EmailSent     bool            `json:"email_sent"`
	EmailSentTime *time.Time      `json:"email_sent_time"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns the written briefings of a brew the user owns, newest first.
func (s *Service) List(ctx context.Context, userID, brewID uint64, limit, offset int) (*Page, error) {
	limit, offset = clampPage(limit, offset)
	db := s.db.WithContext(ctx)

	var brew models.Brew
	if err := db.Where("id = ? AND user_id = ?", brewID, userID).First(&brew).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pipeline.ErrBrewNotFound
		}
		return nil, err
	}

	base := func() *gorm.DB {
		return db.Table("editor_logs").
			Joins("JOIN brew_runs ON brew_runs.run_id = editor_logs.run_id").
			Where("brew_runs.brew_id = ? AND brew_runs.user_id = ? AND editor_logs.parsed_at IS NOT NULL", brewID, userID)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, err
	}

	items := make([]Summary, 0, limit)
	err := base().
		Select(`editor_logs.run_id AS run_id, editor_logs.subject AS subject,
			brew_runs.current_stage AS stage, editor_logs.email_sent AS email_sent,
			editor_logs.email_sent_time AS email_sent_time, brew_runs.created_at AS created_at,
			COALESCE(curator_logs.article_count, 0) AS article_count`).
		Joins("LEFT JOIN curator_logs ON curator_logs.run_id = editor_logs.run_id").
		Order("brew_runs.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Summary{}
	}
	return &Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Get returns one run with whatever stage output it produced.
func (s *Service) Get(ctx context.Context, userID uint64, runID string) (*Detail, error) {
	db := s.db.WithContext(ctx)

	var run pipeline.Run
	if err := db.Where("run_id = ? AND user_id = ?", runID, userID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pipeline.ErrRunNotFound
		}
		return nil, err
	}
	d := &Detail{Run: run}

	var cl pipeline.CuratorLog
	switch err := db.Where("run_id = ?", runID).First(&cl).Error; {
	case err == nil:
		d.CuratorNotes = cl.CuratorNotes
		d.ArticleCount = cl.ArticleCount
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	var el pipeline.EditorLog
	switch err := db.Where("run_id = ?", runID).First(&el).Error; {
	case err == nil:
		draft, ok, derr := el.ParsedDraft()
		if derr != nil {
			return nil, derr
		}
		if ok {
			d.Draft = &draft
		}
		d.Subject = el.Subject
		d.EmailSent = el.EmailSent
		d.EmailSentTime = el.EmailSentTime
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return d, nil
}
