package feedback

import "time"

type Reaction string

const (
	Like    Reaction = "like"
	Dislike Reaction = "dislike"
)

func (r Reaction) Valid() bool { return r == Like || r == Dislike }

// Feedback is one reaction. ArticlePosition 0 is the briefing as a whole;
// 1..n point at the draft's article write-ups.
type Feedback struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID           string    `gorm:"type:varchar(36);not null;uniqueIndex:uniq_feedback_key,priority:1" json:"run_id"`
	UserID          uint64    `gorm:"not null;uniqueIndex:uniq_feedback_key,priority:2;index" json:"user_id"`
	ArticlePosition int       `gorm:"not null;uniqueIndex:uniq_feedback_key,priority:3" json:"article_position"`
	FeedbackType    Reaction  `gorm:"type:varchar(16);not null" json:"feedback_type"`
	ArticleTitle    string    `gorm:"type:varchar(500)" json:"article_title,omitempty"`
	ArticleSource   string    `gorm:"type:varchar(255)" json:"article_source,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `gorm:"index" json:"updated_at"`
}

func (Feedback) TableName() string { return "feedback" }
