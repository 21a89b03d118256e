package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/di"
	"github.com/sandeepkv93/credential-session-core/internal/tools/common"
	"github.com/sandeepkv93/credential-session-core/internal/tools/loadgen"
	"github.com/sandeepkv93/credential-session-core/internal/tools/ui"
)

// Options are shared by every operator command. CI switches from the
// interactive spinner to one JSON line per command.
type Options struct {
	CI      bool
	Timeout time.Duration
}

// Commands returns the operator subcommands: migrate, sweep, credential and
// loadgen.
func Commands(opts *Options) []*cobra.Command {
	return []*cobra.Command{
		newMigrateCommand(opts),
		newSweepCommand(opts),
		newCredentialCommand(opts),
		newLoadgenCommand(opts),
	}
}

func newMigrateCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), opts, "migrate", withCore(func(_ context.Context, core *di.Core) ([]string, error) {
				return []string{"driver=" + core.Config.DatabaseDriver, "schema up to date"}, nil
			}))
		},
	}
}

func newSweepCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Purge sessions expired for longer than the sweep grace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), opts, "sweep expired sessions", withCore(func(ctx context.Context, core *di.Core) ([]string, error) {
				purged, err := core.Sessions.SweepExpired(ctx)
				if err != nil {
					return nil, err
				}
				return []string{fmt.Sprintf("purged=%d", purged)}, nil
			}))
		},
	}
}

func newCredentialCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{Use: "credential", Short: "Manage credentials"}
	cmd.AddCommand(&cobra.Command{
		Use:   "deactivate <credential-id>",
		Short: "Deactivate a credential and revoke its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), opts, "credential deactivate", withCore(func(ctx context.Context, core *di.Core) ([]string, error) {
				if err := core.Credentials.Deactivate(ctx, args[0]); err != nil {
					return nil, err
				}
				return []string{"deactivated " + args[0]}, nil
			}))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <credential-id>",
		Short: "Delete a credential and all of its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), opts, "credential delete", withCore(func(ctx context.Context, core *di.Core) ([]string, error) {
				if err := core.Credentials.Delete(ctx, args[0]); err != nil {
					return nil, err
				}
				return []string{"deleted " + args[0]}, nil
			}))
		},
	})
	return cmd
}

func newLoadgenCommand(opts *Options) *cobra.Command {
	cfg := loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Drive register, login and session traffic against a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), opts, "loadgen "+cfg.Profile, func(ctx context.Context) ([]string, error) {
				res, err := loadgen.Run(ctx, cfg)
				details := []string{fmt.Sprintf("total=%d failures=%d", res.TotalRequests, res.Failures)}
				for _, class := range []string{"2xx", "4xx", "5xx", "error"} {
					if n := res.StatusClasses[class]; n > 0 {
						details = append(details, fmt.Sprintf("%s=%d", class, n))
					}
				}
				if err == nil && res.Failures > 0 {
					err = fmt.Errorf("%d failed requests", res.Failures)
				}
				return details, err
			})
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: auth, session or mixed")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "how long to generate traffic")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 20, "requests per second across all workers")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "number of workers")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 42, "random seed for request mix")
	return cmd
}

func withCore(fn func(context.Context, *di.Core) ([]string, error)) func(context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		core, cleanup, err := di.InitializeCore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		return fn(ctx, core)
	}
}

func execute(parent context.Context, opts *Options, title string, fn func(context.Context) ([]string, error)) error {
	details, err := run(parent, opts, title, fn)
	if opts.CI {
		common.PrintCIResult(err == nil, title, details, err)
	}
	return err
}

func run(parent context.Context, opts *Options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.CI {
		if parent == nil {
			parent = context.Background()
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Minute
		}
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}
