package main

import (
	"fmt"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/auth"
	"github.com/dhirajc963/timebrew.news/internal/config"
	"github.com/spf13/cobra"
)

// newTokenCmd mints a development token in place of the identity provider.
func newTokenCmd() *cobra.Command {
	var (
		userID uint64
		email  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a JWT for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			tok, err := auth.SignJWT(userID, email, cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "user id (required)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
