// ABOUTME: Devserver command running the in-memory backend for local use
// ABOUTME: Serves the auth API, role dashboards and the realtime endpoint

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/config"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/internal/devserver"
	"github.com/spf13/cobra"
)

var devAddr string

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local backend with seeded accounts",
	Long: `Run an in-memory backend for trying the console locally.

Seeded accounts (override with FASTFOOD_DEV_USERS_FILE):
  crew.lead / validPass123!   staff
  manager   / Manager123!     admin
  ana       / Customer123!    customer

Publish events with POST /api/dev/events using an admin token.`,
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, cfg *config.Config) int {
			return runDevserver(ctx, os.Stdout, cfg)
		})
	},
}

func init() {
	rootCmd.AddCommand(devserverCmd)
	devserverCmd.Flags().StringVar(&devAddr, "addr", "", "Listen address (overrides FASTFOOD_DEV_ADDR)")
}

func runDevserver(ctx context.Context, w io.Writer, cfg *config.Config) int {
	opts := devserver.Options{
		JWTSecret: cfg.DevJWTSecret,
		RateLimit: cfg.DevRateLimit,
	}
	if cfg.DevUsersFile != "" {
		seed, err := devserver.LoadSeed(cfg.DevUsersFile)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return exitUsage
		}
		opts.Seed = seed
	}

	s, err := devserver.New(opts)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}

	addr := cfg.DevAddr
	if devAddr != "" {
		addr = devAddr
	}
	if err := s.ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitService
	}
	return exitOK
}
