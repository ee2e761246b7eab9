package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/dhirajc963/timebrew.news/internal/models"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const sweepLease = "scheduler:sweep"

// ErrSweepBusy means another scheduler replica holds the sweep lease.
var ErrSweepBusy = errors.New("scheduler: sweep already running elsewhere")

// Locker is a cross-process mutual exclusion lease.
type Locker interface {
	AcquireLease(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, token string) error
}

type Launched struct {
	BrewID uint64 `json:"brew_id"`
	UserID uint64 `json:"user_id"`
	RunID  string `json:"run_id"`
}

type Failure struct {
	BrewID uint64 `json:"brew_id"`
	RunID  string `json:"run_id,omitempty"`
	Err    string `json:"error"`
}

// Report summarizes one sweep. Per-brew problems land in Failures and
// never abort the sweep.
type Report struct {
	CheckedAt time.Time  `json:"checked_at"`
	Checked   int        `json:"checked"`
	Due       int        `json:"due"`
	Launched  []Launched `json:"launched"`
	Skipped   int        `json:"skipped"`
	Failures  []Failure  `json:"failures"`
}

type candidate struct {
	BrewID       uint64
	UserID       uint64
	DeliveryTime string
	LastSentDate *time.Time
	Timezone     string
}

type Options struct {
	Window      time.Duration
	Concurrency int
	LeaseTTL    time.Duration
}

type Scheduler struct {
	db    *gorm.DB
	coord *pipeline.Coordinator
	inv   pipeline.Invoker
	lock  Locker
	opts  Options
	log   *log.Helper
	now   func() time.Time
}

// New builds a scheduler; lock may be nil for a single replica.
func New(db *gorm.DB, coord *pipeline.Coordinator, inv pipeline.Invoker, lock Locker, opts Options, logger log.Logger) *Scheduler {
	if opts.Window <= 0 {
		opts.Window = 15 * time.Minute
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = opts.Window
	}
	return &Scheduler{
		db:    db,
		coord: coord,
		inv:   inv,
		lock:  lock,
		opts:  opts,
		log:   log.NewHelper(log.With(logger, "module", "scheduler")),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Sweep launches a run for every due brew. The returned error is only
// for failures that stopped the sweep as a whole.
func (s *Scheduler) Sweep(ctx context.Context) (*Report, error) {
	if s.lock != nil {
		token, err := common.NewULID()
		if err != nil {
			return nil, err
		}
		got, err := s.lock.AcquireLease(ctx, sweepLease, token, s.opts.LeaseTTL)
		if err != nil {
			return nil, err
		}
		if !got {
			return nil, ErrSweepBusy
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), sweepLease, token); err != nil {
				s.log.WithContext(ctx).Warnw("msg", "release sweep lease", "err", err)
			}
		}()
	}

	now := s.now()
	rep := &Report{CheckedAt: now, Launched: []Launched{}, Failures: []Failure{}}

	cands, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	rep.Checked = len(cands)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)
	for _, c := range cands {
		u := models.User{Timezone: c.Timezone}
		if !IsDue(now, c.DeliveryTime, u.Location(), c.LastSentDate, s.opts.Window) {
			continue
		}
		rep.Due++
		g.Go(func() error {
			run, err := pipeline.Launch(ctx, s.coord, s.inv, c.BrewID, c.UserID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				rep.Launched = append(rep.Launched, Launched{BrewID: c.BrewID, UserID: c.UserID, RunID: run.RunID})
			case errors.Is(err, pipeline.ErrRunInProgress), errors.Is(err, pipeline.ErrBrewInactive):
				// lost a race with a manual trigger or an edit
				rep.Skipped++
			default:
				f := Failure{BrewID: c.BrewID, Err: err.Error()}
				if run != nil {
					f.RunID = run.RunID
				}
				rep.Failures = append(rep.Failures, f)
			}
			return nil
		})
	}
	_ = g.Wait()

	logger := s.log.WithContext(ctx)
	for _, f := range rep.Failures {
		logger.Errorw("msg", "launch brew", "brew_id", f.BrewID, "run_id", f.RunID, "err", f.Err)
	}
	logger.Infow("msg", "sweep done",
		"checked", rep.Checked, "due", rep.Due, "launched", len(rep.Launched),
		"skipped", rep.Skipped, "failed", len(rep.Failures),
	)
	return rep, nil
}

// candidates lists active brews of active users that have no working run.
func (s *Scheduler) candidates(ctx context.Context) ([]candidate, error) {
	var out []candidate
	err := s.db.WithContext(ctx).
		Table("brews AS b").
		Select("b.id AS brew_id, b.user_id, b.delivery_time, b.last_sent_date, u.timezone").
		Joins("JOIN users u ON u.id = b.user_id").
		Where("b.is_active = ? AND u.is_active = ?", true, true).
		Where("NOT EXISTS (SELECT 1 FROM brew_runs r WHERE r.brew_id = b.id AND r.current_stage IN ?)", pipeline.WorkingStages()).
		Order("b.id").
		Scan(&out).Error
	return out, err
}
