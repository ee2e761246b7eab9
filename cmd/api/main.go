package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/app"
	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/dhirajc963/timebrew.news/internal/config"
	"github.com/dhirajc963/timebrew.news/internal/db"
	"github.com/dhirajc963/timebrew.news/internal/httpapi"
	"github.com/dhirajc963/timebrew.news/internal/httpapi/handlers"
	"github.com/dhirajc963/timebrew.news/internal/store/redisstore"
	"github.com/go-kratos/kratos/v2/log"
)

func main() {
	cfg := config.Load()
	logger := common.NewLogger("timebrew-api", cfg.LogLevel)
	h := log.NewHelper(logger)

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		h.Fatalf("db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		h.Fatalf("migrate: %v", err)
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

	deps := handlers.Deps{Coord: p.Coord, Invoker: inv}
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rds.Ping(pctx); err != nil {
		h.Warnw("msg", "redis unavailable, trigger cooldown disabled", "addr", cfg.RedisAddr, "err", err)
	} else {
		deps.Limiter = rds
	}
	cancel()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(gdb, cfg, deps, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	h.Infow("msg", "api listening", "addr", cfg.HTTPAddr, "invoker", cfg.Invoker)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.Fatalf("listen: %v", err)
	}
}
