package pipeline

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
)

// Invoker hands a run's next stage to whatever executes stages out of band.
type Invoker interface {
	Enqueue(ctx context.Context, runID string, stage Stage) error
}

// Runner executes one stage through its worker and applies the failure
// policy to the outcome.
type Runner struct {
	coord   *Coordinator
	workers map[Stage]Worker
	invoker Invoker
	log     *log.Helper
}

func NewRunner(coord *Coordinator, logger log.Logger, workers ...Worker) *Runner {
	r := &Runner{
		coord:   coord,
		workers: make(map[Stage]Worker, len(workers)),
		log:     log.NewHelper(log.With(logger, "module", "pipeline/runner")),
	}
	for _, w := range workers {
		r.workers[w.Stage()] = w
	}
	return r
}

// SetInvoker makes Execute chain the next stage after a successful one.
func (r *Runner) SetInvoker(inv Invoker) { r.invoker = inv }

// Execute runs one stage and, on success, enqueues the following stage.
func (r *Runner) Execute(ctx context.Context, runID string, stage Stage) Outcome {
	out := r.execute(ctx, runID, stage)
	if out.Kind == OutcomeOK && out.Next.Working() && r.invoker != nil {
		if err := r.invoker.Enqueue(ctx, runID, out.Next); err != nil {
			r.log.WithContext(ctx).Errorw("msg", "enqueue next stage failed", "run_id", runID, "stage", out.Next, "err", err)
			r.failRun(ctx, runID, out.Next, fmt.Sprintf("enqueue %s: %v", out.Next, err))
		}
	}
	return out
}

// Drive runs every remaining stage of a run in the calling goroutine and
// returns the last outcome.
func (r *Runner) Drive(ctx context.Context, runID string) (Outcome, error) {
	var last Outcome
	for {
		run, err := r.coord.GetRun(ctx, runID)
		if err != nil {
			return last, err
		}
		if !run.CurrentStage.Working() {
			return last, nil
		}
		last = r.execute(ctx, runID, run.CurrentStage)
		if last.Kind != OutcomeOK {
			return last, nil
		}
	}
}

func (r *Runner) execute(ctx context.Context, runID string, stage Stage) Outcome {
	w, ok := r.workers[stage]
	if !ok {
		return outcomeErr(OutcomeStageMismatch, runID, stage, fmt.Errorf("no worker for stage %s", stage))
	}

	out := w.Run(ctx, runID)
	logger := r.log.WithContext(ctx)
	switch {
	case out.Kind == OutcomeOK:
		logger.Infow("msg", "stage done", "run_id", runID, "stage", stage, "next", out.Next)
	case out.Failed():
		r.failRun(ctx, runID, stage, out.Err.Error())
	case out.Kind == OutcomeStageMismatch:
		// A second invocation of the same stage, or a worker acting on
		// stale state. Nothing was written.
		logger.Warnw("msg", "stage mismatch", "run_id", runID, "stage", stage, "err", out.Err)
	case out.Kind == OutcomeNotFound:
		logger.Warnw("msg", "run not found", "run_id", runID, "stage", stage)
	}
	return out
}

// failRun records a stage failure. It outlives the caller's deadline so a
// timed-out stage still lands in failed.
func (r *Runner) failRun(ctx context.Context, runID string, stage Stage, msg string) {
	if err := r.coord.Fail(context.WithoutCancel(ctx), runID, stage, msg); err != nil {
		r.log.WithContext(ctx).Errorw("msg", "mark run failed", "run_id", runID, "stage", stage, "err", err)
	}
}

// Launch admits a new run and hands its curator stage to inv. If the
// hand-off fails the run is failed so the brew is not blocked.
func Launch(ctx context.Context, coord *Coordinator, inv Invoker, brewID, userID uint64) (*Run, error) {
	run, err := coord.CreateRun(ctx, brewID, userID)
	if err != nil {
		return nil, err
	}
	if err := inv.Enqueue(ctx, run.RunID, StageCurator); err != nil {
		if ferr := coord.Fail(context.WithoutCancel(ctx), run.RunID, StageCurator, "enqueue curator: "+err.Error()); ferr != nil {
			return run, fmt.Errorf("enqueue curator: %w (marking failed: %v)", err, ferr)
		}
		return run, fmt.Errorf("enqueue curator: %w", err)
	}
	return run, nil
}
