package pipeline

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Run is one execution of the pipeline for one brew delivery. Only the
// Coordinator writes CurrentStage.
type Run struct {
	RunID        string    `gorm:"primaryKey;type:varchar(36)" json:"run_id"`
	BrewID       uint64    `gorm:"not null;index:idx_brew_runs_brew_stage,priority:1" json:"brew_id"`
	UserID       uint64    `gorm:"not null;index" json:"user_id"`
	CurrentStage Stage     `gorm:"type:varchar(16);not null;index:idx_brew_runs_brew_stage,priority:2" json:"current_stage"`
	FailedStage  *Stage    `gorm:"type:varchar(16)" json:"failed_stage,omitempty"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"index" json:"updated_at"`
}

func (Run) TableName() string { return "brew_runs" }

type Article struct {
	Headline      string `json:"headline"`
	Summary       string `json:"summary"`
	Source        string `json:"source"`
	URL           string `json:"url"`
	PublishedTime string `json:"published_time"`
	Relevance     string `json:"relevance"`
}

// CuratorLog is the curator stage's output. RawResponse and Prompt are
// written before parsing; Articles, CuratorNotes and ParsedAt only after a
// successful parse.
type CuratorLog struct {
	ID           uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID        string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"run_id"`
	BrewID       uint64         `gorm:"index;not null" json:"brew_id"`
	UserID       uint64         `gorm:"index;not null" json:"user_id"`
	Articles     datatypes.JSON `json:"articles"`
	ArticleCount int            `gorm:"not null;default:0" json:"article_count"`
	CuratorNotes string         `gorm:"type:text" json:"curator_notes"`
	RawResponse  string         `gorm:"type:text;not null" json:"raw_response"`
	Prompt       string         `gorm:"type:text;not null" json:"prompt"`
	Model        string         `gorm:"type:varchar(128)" json:"model"`
	RuntimeMS    int64          `json:"runtime_ms"`
	ParsedAt     *time.Time     `json:"parsed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (CuratorLog) TableName() string { return "curator_logs" }

func (l *CuratorLog) ArticleList() ([]Article, error) {
	var out []Article
	if len(l.Articles) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(l.Articles, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type Draft struct {
	Subject  string         `json:"subject"`
	Intro    string         `json:"intro"`
	Articles []DraftArticle `json:"articles"`
	Outro    string         `json:"outro"`
}

type DraftArticle struct {
	Position int    `json:"position"`
	Headline string `json:"headline"`
	Body     string `json:"body"`
	Source   string `json:"source"`
	URL      string `json:"url"`
}

// ArticleAt returns the write-up at a 1-based position.
func (d *Draft) ArticleAt(pos int) (DraftArticle, bool) {
	if pos < 1 || pos > len(d.Articles) {
		return DraftArticle{}, false
	}
	return d.Articles[pos-1], true
}

type EditorLog struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID         string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"run_id"`
	BrewID        uint64         `gorm:"index;not null" json:"brew_id"`
	UserID        uint64         `gorm:"index;not null" json:"user_id"`
	Draft         datatypes.JSON `json:"draft"`
	Subject       string         `gorm:"type:varchar(255)" json:"subject"`
	RawResponse   string         `gorm:"type:text;not null" json:"raw_response"`
	Prompt        string         `gorm:"type:text;not null" json:"prompt"`
	Model         string         `gorm:"type:varchar(128)" json:"model"`
	RuntimeMS     int64          `json:"runtime_ms"`
	ParsedAt      *time.Time     `json:"parsed_at,omitempty"`
	EmailSent     bool           `gorm:"not null;default:false" json:"email_sent"`
	EmailSentTime *time.Time     `json:"email_sent_time,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (EditorLog) TableName() string { return "editor_logs" }

// ParsedDraft decodes the stored draft. ok is false while the log only holds
// the raw response.
func (l *EditorLog) ParsedDraft() (d Draft, ok bool, err error) {
	if l.ParsedAt == nil {
		return Draft{}, false, nil
	}
	if err := json.Unmarshal(l.Draft, &d); err != nil {
		return Draft{}, false, err
	}
	return d, true, nil
}
