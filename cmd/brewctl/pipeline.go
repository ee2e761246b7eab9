package main

import (
	"errors"
	"fmt"

	"github.com/dhirajc963/timebrew.news/internal/app"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"github.com/dhirajc963/timebrew.news/internal/scheduler"
	"github.com/spf13/cobra"
)

func newTriggerCmd() *cobra.Command {
	var (
		brewID uint64
		userID uint64
		inline bool
	)
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Start a run for one brew outside the schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()
			if inline {
				e.cfg.Invoker = "inline"
			}
			p, err := e.pipeline(ctx)
			if err != nil {
				return err
			}
			inv, closeInv, err := app.NewInvoker(e.cfg, p)
			if err != nil {
				return err
			}

			run, err := pipeline.Launch(ctx, p.Coord, inv, brewID, userID)
			if err != nil {
				_ = closeInv()
				var conflict *pipeline.ConflictError
				if errors.As(err, &conflict) {
					return fmt.Errorf("brew %d already has run %s in %s", brewID, conflict.RunID, conflict.Stage)
				}
				return err
			}
			// for inline this waits until the pipeline is done
			_ = closeInv()

			if run, err = p.Coord.GetRun(ctx, run.RunID); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), run)
		},
	}
	cmd.Flags().Uint64Var(&brewID, "brew", 0, "brew id (required)")
	cmd.Flags().Uint64Var(&userID, "user", 0, "owner user id (required)")
	cmd.Flags().BoolVar(&inline, "inline", false, "run every stage in this process and wait")
	_ = cmd.MarkFlagRequired("brew")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one scheduler sweep now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()
			p, err := e.pipeline(ctx)
			if err != nil {
				return err
			}
			inv, closeInv, err := app.NewInvoker(e.cfg, p)
			if err != nil {
				return err
			}
			defer closeInv()

			s := scheduler.New(e.db, p.Coord, inv, nil, scheduler.Options{
				Window:      e.cfg.SchedulerInterval,
				Concurrency: e.cfg.SchedulerConcurrency,
			}, e.logger)
			rep, err := s.Sweep(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
}

func newReapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Fail runs that stopped making progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()
			coord := pipeline.NewCoordinator(e.db, e.logger)
			n, err := pipeline.NewJanitor(coord, e.cfg.StaleRunAfter, e.logger).Reap(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reaped %d runs\n", n)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	run := &cobra.Command{
		Use:   "run",
		Short: "Inspect or drive a single run",
	}

	run.AddCommand(&cobra.Command{
		Use:   "show <run_id>",
		Short: "Print a run's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()
			r, err := pipeline.NewCoordinator(e.db, e.logger).GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	})

	run.AddCommand(&cobra.Command{
		Use:   "drive <run_id>",
		Short: "Execute the remaining stages of a run in this process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()
			p, err := e.pipeline(ctx)
			if err != nil {
				return err
			}
			out, err := p.Runner.Drive(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "last outcome: %s\n", out)
			r, err := p.Coord.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	})
	return run
}
