package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

var (
	ErrInvalidReaction = errors.New("feedback type must be like or dislike")
	ErrInvalidPosition = errors.New("no article at that position")
	ErrNoBriefing      = errors.New("briefing has not been written yet")
)

type Action string

const (
	ActionSubmitted Action = "submitted"
	ActionUpdated   Action = "updated"
	ActionRemoved   Action = "removed"
)

type Result struct {
	Action          Action    `json:"action"`
	RunID           string    `json:"run_id"`
	ArticlePosition int       `json:"article_position"`
	FeedbackType    *Reaction `json:"feedback_type"`
}

type ArticleStatus struct {
	Position int       `json:"position"`
	Headline string    `json:"headline"`
	Reaction *Reaction `json:"feedback_type"`
}

type Status struct {
	RunID    string          `json:"run_id"`
	Overall  *Reaction       `json:"overall"`
	Articles []ArticleStatus `json:"articles"`
}

type Service struct {
	db  *gorm.DB
	log *log.Helper
}

func NewService(db *gorm.DB, logger log.Logger) *Service {
	return &Service{db: db, log: log.NewHelper(log.With(logger, "module", "feedback"))}
}

// Toggle records a reaction. The same reaction twice removes it; a
// different one replaces it in place.
func (s *Service) Toggle(ctx context.Context, userID uint64, runID string, position int, reaction Reaction) (*Result, error) {
	if !reaction.Valid() {
		return nil, ErrInvalidReaction
	}
	if position < 0 {
		return nil, ErrInvalidPosition
	}

	draft, err := s.ownedDraft(ctx, userID, runID)
	if err != nil {
		return nil, err
	}
	var title, source string
	if position > 0 {
		a, ok := draft.ArticleAt(position)
		if !ok {
			return nil, ErrInvalidPosition
		}
		title, source = a.Headline, a.Source
	}

	res, err := s.toggle(ctx, userID, runID, position, reaction, title, source)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost a race with a concurrent first submission; the row exists now
		res, err = s.toggle(ctx, userID, runID, position, reaction, title, source)
	}
	if err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Infow("msg", "feedback", "run_id", runID, "user_id", userID,
		"position", position, "action", res.Action)
	return res, nil
}

func (s *Service) toggle(ctx context.Context, userID uint64, runID string, position int, reaction Reaction, title, source string) (*Result, error) {
	res := &Result{RunID: runID, ArticlePosition: position}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Feedback
		err := tx.Where("run_id = ? AND user_id = ? AND article_position = ?", runID, userID, position).
			Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			fb := &Feedback{
				RunID:           runID,
				UserID:          userID,
				ArticlePosition: position,
				FeedbackType:    reaction,
				ArticleTitle:    title,
				ArticleSource:   source,
			}
			if err := tx.Create(fb).Error; err != nil {
				return err
			}
			res.Action = ActionSubmitted
			r := reaction
			res.FeedbackType = &r
		case err != nil:
			return err
		case existing.FeedbackType == reaction:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			res.Action = ActionRemoved
		default:
			if err := tx.Model(&existing).Update("feedback_type", string(reaction)).Error; err != nil {
				return err
			}
			res.Action = ActionUpdated
			r := reaction
			res.FeedbackType = &r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Status returns the caller's reactions for a briefing: overall plus one
// entry per article position.
func (s *Service) Status(ctx context.Context, userID uint64, runID string) (*Status, error) {
	draft, err := s.ownedDraft(ctx, userID, runID)
	if err != nil {
		return nil, err
	}
	var rows []Feedback
	if err := s.db.WithContext(ctx).
		Where("run_id = ? AND user_id = ?", runID, userID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	byPos := make(map[int]Reaction, len(rows))
	for _, r := range rows {
		byPos[r.ArticlePosition] = r.FeedbackType
	}

	st := &Status{RunID: runID, Articles: make([]ArticleStatus, 0, len(draft.Articles))}
	if r, ok := byPos[0]; ok {
		st.Overall = &r
	}
	for i, a := range draft.Articles {
		as := ArticleStatus{Position: i + 1, Headline: a.Headline}
		if r, ok := byPos[i+1]; ok {
			as.Reaction = &r
		}
		st.Articles = append(st.Articles, as)
	}
	return st, nil
}

// RecentFeedback feeds the curator: the user's latest article-level
// reactions, newest first.
func (s *Service) RecentFeedback(ctx context.Context, userID uint64, limit int) ([]pipeline.FeedbackHint, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []Feedback
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND article_position > 0", userID).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]pipeline.FeedbackHint, 0, len(rows))
	for _, r := range rows {
		out = append(out, pipeline.FeedbackHint{Type: string(r.FeedbackType), Title: r.ArticleTitle, Source: r.ArticleSource})
	}
	return out, nil
}

func (s *Service) ownedDraft(ctx context.Context, userID uint64, runID string) (*pipeline.Draft, error) {
	db := s.db.WithContext(ctx)
	var run pipeline.Run
	if err := db.Where("run_id = ? AND user_id = ?", runID, userID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pipeline.ErrRunNotFound
		}
		return nil, err
	}
	var el pipeline.EditorLog
	if err := db.Where("run_id = ?", runID).First(&el).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoBriefing
		}
		return nil, err
	}
	d, ok, err := el.ParsedDraft()
	if err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if !ok {
		return nil, ErrNoBriefing
	}
	return &d, nil
}
