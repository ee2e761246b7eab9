package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Janitor fails runs that stopped making progress, e.g. after a worker
// crashed between claiming a stage and advancing it.
type Janitor struct {
	coord  *Coordinator
	maxAge time.Duration
	log    *log.Helper
	now    func() time.Time
}

func NewJanitor(coord *Coordinator, maxAge time.Duration, logger log.Logger) *Janitor {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Janitor{
		coord:  coord,
		maxAge: maxAge,
		log:    log.NewHelper(log.With(logger, "module", "pipeline/janitor")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Reap fails every stale working run and returns how many it failed.
func (j *Janitor) Reap(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.maxAge)
	runs, err := j.coord.StaleRuns(ctx, cutoff, 500)
	if err != nil {
		return 0, err
	}
	reaped := 0
	for _, r := range runs {
		msg := fmt.Sprintf("stale: no progress in stage %s since %s", r.CurrentStage, r.UpdatedAt.UTC().Format(time.RFC3339))
		err := j.coord.Fail(ctx, r.RunID, r.CurrentStage, msg)
		switch {
		case err == nil:
			reaped++
		case errors.Is(err, ErrStageMismatch):
			// moved on since the listing
		default:
			j.log.WithContext(ctx).Errorw("msg", "reap run", "run_id", r.RunID, "err", err)
		}
	}
	if reaped > 0 {
		j.log.WithContext(ctx).Infow("msg", "reaped stale runs", "count", reaped, "cutoff", cutoff.Format(time.RFC3339))
	}
	return reaped, nil
}
