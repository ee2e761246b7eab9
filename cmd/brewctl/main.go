// Command brewctl is the operator CLI: migrations, manual runs, sweeps and
// development tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dhirajc963/timebrew.news/internal/app"
	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/dhirajc963/timebrew.news/internal/config"
	"github.com/dhirajc963/timebrew.news/internal/db"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "brewctl",
		Short:         "TimeBrew operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newTriggerCmd(),
		newSweepCmd(),
		newReapCmd(),
		newRunCmd(),
		newTokenCmd(),
	)
	return root
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is what most subcommands need: config, a logger and the database.
type env struct {
	cfg    config.Config
	logger log.Logger
	db     *gorm.DB
}

func loadEnv() (*env, error) {
	cfg := config.Load()
	logger := common.NewLogger("brewctl", cfg.LogLevel)
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, db: gdb}, nil
}

func (e *env) pipeline(ctx context.Context) (*app.Pipeline, error) {
	return app.NewPipeline(ctx, e.cfg, e.db, app.NewRegistry(e.cfg, e.logger), app.NewMailer(e.cfg), e.logger)
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
