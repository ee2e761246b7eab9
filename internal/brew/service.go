package brew

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dhirajc963/timebrew.news/internal/models"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

const (
	MaxNameLen   = 255
	MaxTopics    = 10
	MaxTopicLen  = 100
	sentCountSQL = "SELECT brew_id, COUNT(*) AS sent FROM editor_logs WHERE user_id = ? AND email_sent = ? GROUP BY brew_id"
)

var (
	ErrNotFound = errors.New("brew not found")
	ErrInvalid  = errors.New("invalid brew")
)

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }
func (e *ValidationError) Is(t error) bool { return t == ErrInvalid }

type CreateInput struct {
	Name         string
	Topics       []string
	DeliveryTime string
}

// UpdateInput leaves nil fields unchanged.
type UpdateInput struct {
	Name         *string
	Topics       []string
	DeliveryTime *string
	IsActive     *bool
}

type WithStats struct {
	models.Brew
	BriefingsSent int64 `json:"briefings_sent"`
}

type Service struct {
	db  *gorm.DB
	log *log.Helper
}

func NewService(db *gorm.DB, logger log.Logger) *Service {
	return &Service{db: db, log: log.NewHelper(log.With(logger, "module", "brew"))}
}

func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (*models.Brew, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	topics, err := cleanTopics(in.Topics)
	if err != nil {
		return nil, err
	}
	at, err := cleanClock(in.DeliveryTime)
	if err != nil {
		return nil, err
	}

	b := &models.Brew{UserID: userID, Name: name, Topics: topics, DeliveryTime: at, IsActive: true}
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Infow("msg", "brew created", "brew_id", b.ID, "user_id", userID)
	return b, nil
}

// List returns the user's brews with how many briefings each has sent.
func (s *Service) List(ctx context.Context, userID uint64, includeInactive bool) ([]WithStats, error) {
	db := s.db.WithContext(ctx)
	q := db.Where("user_id = ?", userID)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var brews []models.Brew
	if err := q.Order("created_at DESC, id DESC").Find(&brews).Error; err != nil {
		return nil, err
	}

	var counts []struct {
		BrewID uint64
		Sent   int64
	}
	if err := db.Raw(sentCountSQL, userID, true).Scan(&counts).Error; err != nil {
		return nil, err
	}
	sent := make(map[uint64]int64, len(counts))
	for _, c := range counts {
		sent[c.BrewID] = c.Sent
	}

	out := make([]WithStats, 0, len(brews))
	for _, b := range brews {
		out = append(out, WithStats{Brew: b, BriefingsSent: sent[b.ID]})
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, userID, id uint64) (*models.Brew, error) {
	var b models.Brew
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Service) Update(ctx context.Context, userID, id uint64, in UpdateInput) (*models.Brew, error) {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	var cols []string
	if in.Name != nil {
		name, err := cleanName(*in.Name)
		if err != nil {
			return nil, err
		}
		b.Name = name
		cols = append(cols, "name")
	}
	if in.Topics != nil {
		topics, err := cleanTopics(in.Topics)
		if err != nil {
			return nil, err
		}
		b.Topics = topics
		cols = append(cols, "topics")
	}
	if in.DeliveryTime != nil {
		at, err := cleanClock(*in.DeliveryTime)
		if err != nil {
			return nil, err
		}
		b.DeliveryTime = at
		cols = append(cols, "delivery_time")
	}
	if in.IsActive != nil {
		b.IsActive = *in.IsActive
		cols = append(cols, "is_active")
	}
	if len(cols) == 0 {
		return b, nil
	}

	// Select so that false and empty values are written too.
	if err := s.db.WithContext(ctx).Model(b).Select(cols).Updates(b).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// Deactivate soft-deletes a brew; its history stays queryable.
func (s *Service) Deactivate(ctx context.Context, userID, id uint64) error {
	res := s.db.WithContext(ctx).Model(&models.Brew{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.log.WithContext(ctx).Infow("msg", "brew deactivated", "brew_id", id, "user_id", userID)
	return nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "name", Msg: "is required"}
	}
	if len(name) > MaxNameLen {
		return "", &ValidationError{Field: "name", Msg: fmt.Sprintf("must be at most %d characters", MaxNameLen)}
	}
	return name, nil
}

func cleanTopics(in []string) ([]string, error) {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if len(t) > MaxTopicLen {
			return nil, &ValidationError{Field: "topics", Msg: fmt.Sprintf("each topic must be at most %d characters", MaxTopicLen)}
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	if len(out) == 0 || len(out) > MaxTopics {
		return nil, &ValidationError{Field: "topics", Msg: fmt.Sprintf("must have between 1 and %d topics", MaxTopics)}
	}
	return out, nil
}

func cleanClock(s string) (string, error) {
	h, m, err := models.ParseClock(s)
	if err != nil {
		return "", &ValidationError{Field: "delivery_time", Msg: "must be HH:MM (24-hour)"}
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}
