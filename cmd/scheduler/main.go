package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/app"
	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/dhirajc963/timebrew.news/internal/config"
	"github.com/dhirajc963/timebrew.news/internal/db"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"github.com/dhirajc963/timebrew.news/internal/scheduler"
	"github.com/dhirajc963/timebrew.news/internal/store/redisstore"
	"github.com/go-kratos/kratos/v2/log"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and reap, then exit")
	flag.Parse()

	cfg := config.Load()
	logger := common.NewLogger("timebrew-scheduler", cfg.LogLevel)
	h := log.NewHelper(logger)

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		h.Fatalf("db: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := app.NewPipeline(ctx, cfg, gdb, app.NewRegistry(cfg, logger), app.NewMailer(cfg), logger)
	if err != nil {
		h.Fatalf("pipeline: %v", err)
	}
	inv, closeInv, err := app.NewInvoker(cfg, p)
	if err != nil {
		h.Fatalf("invoker: %v", err)
	}
	defer closeInv()

	var lock scheduler.Locker
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()
	if err := rds.Ping(ctx); err != nil {
		h.Warnw("msg", "redis unavailable, running without sweep lease", "addr", cfg.RedisAddr, "err", err)
	} else {
		lock = rds
	}

	sched := scheduler.New(gdb, p.Coord, inv, lock, scheduler.Options{
		Window:      cfg.SchedulerInterval,
		Concurrency: cfg.SchedulerConcurrency,
	}, logger)
	janitor := pipeline.NewJanitor(p.Coord, cfg.StaleRunAfter, logger)

	tick := func() {
		if _, err := janitor.Reap(ctx); err != nil {
			h.Errorw("msg", "reap", "err", err)
		}
		if _, err := sched.Sweep(ctx); err != nil {
			if errors.Is(err, scheduler.ErrSweepBusy) {
				h.Infow("msg", "sweep skipped, lease held elsewhere")
				return
			}
			h.Errorw("msg", "sweep", "err", err)
		}
	}

	tick()
	if *once {
		return
	}

	h.Infow("msg", "scheduler started", "interval", cfg.SchedulerInterval.String())
	t := time.NewTicker(cfg.SchedulerInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Infow("msg", "scheduler shutting down")
			return
		case <-t.C:
			tick()
		}
	}
}
