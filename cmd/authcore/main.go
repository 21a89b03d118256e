package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/di"
	"github.com/sandeepkv93/credential-session-core/internal/tools/admin"
	"github.com/sandeepkv93/credential-session-core/internal/tools/common"
)

const exitFailure = 4

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitFailure)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	opts := &admin.Options{}
	root := &cobra.Command{
		Use:           "authcore",
		Short:         "Credential and session service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return common.LoadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")
	root.PersistentFlags().BoolVar(&opts.CI, "ci", false, "non-interactive machine-readable output")
	root.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 3*time.Minute, "deadline for operator commands in --ci mode")

	root.AddCommand(newServeCommand())
	root.AddCommand(admin.Commands(opts)...)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expired-session sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, cleanup, err := di.InitializeApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.Run(cmd.Context())
		},
	}
}
