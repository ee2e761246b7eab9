package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dhirajc963/timebrew.news/internal/models"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxErrorMessage = 2000

// Coordinator owns the run lifecycle. CreateRun, Advance and Fail are the
// only writers of brew_runs.current_stage.
type Coordinator struct {
	db  *gorm.DB
	log *log.Helper
	now func() time.Time
}

func NewCoordinator(db *gorm.DB, logger log.Logger) *Coordinator {
	return &Coordinator{
		db:  db,
		log: log.NewHelper(log.With(logger, "module", "pipeline/coordinator")),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// CreateRun admits a new run for the brew. The brew must exist, belong to
// userID and be active, and must not already have a working run; the latter
// is reported as *ConflictError.
func (c *Coordinator) CreateRun(ctx context.Context, brewID, userID uint64) (*Run, error) {
	var run *Run
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the brew row lock serializes admissions for one brew
		var brew models.Brew
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", brewID, userID).
			First(&brew).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBrewNotFound
			}
			return err
		}
		if !brew.IsActive {
			return ErrBrewInactive
		}

		var active Run
		err := tx.Where("brew_id = ? AND current_stage IN ?", brewID, WorkingStages()).
			Order("created_at DESC").
			Take(&active).Error
		if err == nil {
			return &ConflictError{RunID: active.RunID, Stage: active.CurrentStage, CreatedAt: active.CreatedAt}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := c.now()
		r := &Run{
			RunID:        uuid.NewString(),
			BrewID:       brewID,
			UserID:       userID,
			CurrentStage: StageCurator,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		run = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.WithContext(ctx).Infow("msg", "run created", "run_id", run.RunID, "brew_id", brewID, "user_id", userID)
	return run, nil
}

func (c *Coordinator) GetRun(ctx context.Context, runID string) (*Run, error) {
	return getRun(c.db.WithContext(ctx), runID)
}

// GetRunForUser hides runs owned by someone else behind ErrRunNotFound.
func (c *Coordinator) GetRunForUser(ctx context.Context, runID string, userID uint64) (*Run, error) {
	var r Run
	if err := c.db.WithContext(ctx).Where("run_id = ? AND user_id = ?", runID, userID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &r, nil
}

// Advance moves a run one stage forward, provided it is still in expected.
func (c *Coordinator) Advance(ctx context.Context, runID string, expected, next Stage) error {
	return c.AdvanceTx(c.db.WithContext(ctx), runID, expected, next)
}

// AdvanceTx is Advance inside a caller-owned transaction.
func (c *Coordinator) AdvanceTx(tx *gorm.DB, runID string, expected, next Stage) error {
	if !CanAdvance(expected, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, expected, next)
	}
	res := tx.Model(&Run{}).
		Where("run_id = ? AND current_stage = ?", runID, string(expected)).
		Updates(map[string]any{
			"current_stage": string(next),
			"updated_at":    c.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return c.mismatch(tx, runID, expected)
	}
	c.log.Infow("msg", "run advanced", "run_id", runID, "from", expected, "to", next)
	return nil
}

// Fail parks a run in failed. It only applies while the run is still in
// failedStage; failing an already failed run is a no-op.
func (c *Coordinator) Fail(ctx context.Context, runID string, failedStage Stage, message string) error {
	if !failedStage.Working() {
		return fmt.Errorf("%w: cannot fail from %s", ErrIllegalTransition, failedStage)
	}
	message = truncate(message, maxErrorMessage)

	db := c.db.WithContext(ctx)
	res := db.Model(&Run{}).
		Where("run_id = ? AND current_stage = ?", runID, string(failedStage)).
		Updates(map[string]any{
			"current_stage": string(StageFailed),
			"failed_stage":  string(failedStage),
			"error_message": message,
			"updated_at":    c.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		run, err := getRun(db, runID)
		if err != nil {
			return err
		}
		if run.CurrentStage == StageFailed {
			return nil
		}
		return &StageMismatchError{RunID: runID, Expected: failedStage, Actual: run.CurrentStage}
	}
	c.log.WithContext(ctx).Warnw("msg", "run failed", "run_id", runID, "stage", failedStage, "error", message)
	return nil
}

// ActiveRun returns the working run for a brew, if any.
func (c *Coordinator) ActiveRun(ctx context.Context, brewID uint64) (*Run, error) {
	var r Run
	err := c.db.WithContext(ctx).
		Where("brew_id = ? AND current_stage IN ?", brewID, WorkingStages()).
		Order("created_at DESC").
		Take(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &r, nil
}

// StaleRuns lists working runs whose last transition is older than cutoff.
func (c *Coordinator) StaleRuns(ctx context.Context, cutoff time.Time, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	var runs []Run
	err := c.db.WithContext(ctx).
		Where("current_stage IN ? AND updated_at < ?", WorkingStages(), cutoff.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (c *Coordinator) mismatch(db *gorm.DB, runID string, expected Stage) error {
	run, err := getRun(db, runID)
	if err != nil {
		return err
	}
	return &StageMismatchError{RunID: runID, Expected: expected, Actual: run.CurrentStage}
}

func getRun(db *gorm.DB, runID string) (*Run, error) {
	var r Run
	if err := db.Where("run_id = ?", runID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &r, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
