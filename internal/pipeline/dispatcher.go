package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/email"
	"github.com/dhirajc963/timebrew.news/internal/models"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// errDelivery marks a mail transport failure inside the dispatch
// transaction.
type errDelivery struct{ err error }

func (e errDelivery) Error() string { return "send: " + e.err.Error() }
func (e errDelivery) Unwrap() error { return e.err }

// defaultSendTimeout bounds the SMTP round trip made while the dispatch
// transaction holds its row locks.
const defaultSendTimeout = 15 * time.Second

type Dispatcher struct {
	db          *gorm.DB
	coord       *Coordinator
	mailer      email.Mailer
	sendTimeout time.Duration
	log         *log.Helper
	now         func() time.Time
}

func NewDispatcher(db *gorm.DB, coord *Coordinator, mailer email.Mailer, logger log.Logger) *Dispatcher {
	return &Dispatcher{
		db:          db,
		coord:       coord,
		mailer:      mailer,
		sendTimeout: defaultSendTimeout,
		log:         log.NewHelper(log.With(logger, "module", "pipeline/dispatcher")),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (w *Dispatcher) Stage() Stage { return StageDispatcher }

// Run renders and sends the briefing. Completing the run, flagging the
// editor log as sent and advancing the brew's last_sent_date commit in one
// transaction together with a successful send; a failed send rolls all
// three back.
func (w *Dispatcher) Run(ctx context.Context, runID string) Outcome {
	run, out, ok := claim(ctx, w.db, runID, StageDispatcher)
	if !ok {
		return out
	}
	db := w.db.WithContext(ctx)

	var ed EditorLog
	if err := db.Where("run_id = ?", runID).First(&ed).Error; err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageDispatcher, fmt.Errorf("load editor output: %w", err))
	}
	draft, parsed, err := ed.ParsedDraft()
	if err != nil || !parsed {
		if err == nil {
			err = errors.New("editor output was never parsed")
		}
		return outcomeErr(OutcomeStoreError, runID, StageDispatcher, err)
	}

	var brew models.Brew
	if err := db.First(&brew, run.BrewID).Error; err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageDispatcher, fmt.Errorf("load brew %d: %w", run.BrewID, err))
	}
	var user models.User
	if err := db.First(&user, run.UserID).Error; err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageDispatcher, fmt.Errorf("load user %d: %w", run.UserID, err))
	}

	html, err := renderHTML(draft, &brew, &user)
	if err != nil {
		return outcomeErr(OutcomeStoreError, runID, StageDispatcher, fmt.Errorf("render: %w", err))
	}
	text, err := plainText(html)
	if err != nil {
		w.log.WithContext(ctx).Warnw("msg", "plain-text fallback failed", "run_id", runID, "err", err)
		text = ""
	}
	msg := email.Message{To: user.Email, Subject: draft.Subject, HTML: html, Text: text}

	sentAt := w.now()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := w.coord.AdvanceTx(tx, runID, StageDispatcher, StageCompleted); err != nil {
			return err
		}
		if err := tx.Model(&EditorLog{}).Where("run_id = ?", runID).Updates(map[string]any{
			"email_sent":      true,
			"email_sent_time": sentAt,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Brew{}).Where("id = ?", brew.ID).
			Update("last_sent_date", sentAt).Error; err != nil {
			return err
		}
		// the run, editor log and brew rows stay locked until Send returns
		sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
		defer cancel()
		if err := w.mailer.Send(sendCtx, msg); err != nil {
			return errDelivery{err: err}
		}
		return nil
	})
	if err != nil {
		var de errDelivery
		if errors.As(err, &de) {
			return outcomeErr(OutcomeDeliveryError, runID, StageDispatcher, err)
		}
		return fromAdvanceErr(runID, StageDispatcher, err)
	}

	w.log.WithContext(ctx).Infow("msg", "briefing sent", "run_id", runID, "brew_id", brew.ID, "to", user.Email)
	return outcomeOK(runID, StageDispatcher, StageCompleted)
}
