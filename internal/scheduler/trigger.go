package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"github.com/go-kratos/kratos/v2/log"
)

// Limiter tracks per-key cooldowns. CooldownLeft is read-only; a key only
// starts cooling down when StartCooldown is called.
type Limiter interface {
	CooldownLeft(ctx context.Context, key string) (time.Duration, error)
	StartCooldown(ctx context.Context, key string, d time.Duration) error
}

var ErrCooldown = errors.New("scheduler: trigger cooling down")

type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("trigger cooling down, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool { return target == ErrCooldown }

// Trigger is the manual, off-cadence path into the pipeline.
type Trigger struct {
	coord    *pipeline.Coordinator
	inv      pipeline.Invoker
	limit    Limiter
	cooldown time.Duration
	log      *log.Helper
}

// NewTrigger builds a Trigger; limit may be nil to disable cooldowns.
func NewTrigger(coord *pipeline.Coordinator, inv pipeline.Invoker, limit Limiter, cooldown time.Duration, logger log.Logger) *Trigger {
	return &Trigger{
		coord:    coord,
		inv:      inv,
		limit:    limit,
		cooldown: cooldown,
		log:      log.NewHelper(log.With(logger, "module", "scheduler/trigger")),
	}
}

// Trigger launches a run for the brew. An in-progress run is reported as
// *pipeline.ConflictError ahead of any cooldown, and only an admitted run
// starts the cooldown.
func (t *Trigger) Trigger(ctx context.Context, userID, brewID uint64) (*pipeline.Run, error) {
	limited := t.limit != nil && t.cooldown > 0
	if limited {
		active, err := t.coord.ActiveRun(ctx, brewID)
		switch {
		case err == nil && active.UserID == userID:
			return nil, &pipeline.ConflictError{RunID: active.RunID, Stage: active.CurrentStage, CreatedAt: active.CreatedAt}
		case err != nil && !errors.Is(err, pipeline.ErrRunNotFound):
			return nil, err
		}

		left, err := t.limit.CooldownLeft(ctx, cooldownKey(userID, brewID))
		if err != nil {
			// a limiter outage should not block triggers
			t.log.WithContext(ctx).Warnw("msg", "cooldown check", "brew_id", brewID, "err", err)
		} else if left > 0 {
			return nil, &CooldownError{RetryAfter: left}
		}
	}

	run, err := pipeline.Launch(ctx, t.coord, t.inv, brewID, userID)
	if err != nil {
		return run, err
	}
	if limited {
		if err := t.limit.StartCooldown(ctx, cooldownKey(userID, brewID), t.cooldown); err != nil {
			t.log.WithContext(ctx).Warnw("msg", "start cooldown", "brew_id", brewID, "err", err)
		}
	}
	t.log.WithContext(ctx).Infow("msg", "manual trigger", "brew_id", brewID, "user_id", userID, "run_id", run.RunID)
	return run, nil
}

func cooldownKey(userID, brewID uint64) string {
	return fmt.Sprintf("trigger:%d:%d", userID, brewID)
}
