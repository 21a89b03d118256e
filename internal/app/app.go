package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/health"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Sweeper       *service.Sweeper
	Observability *observability.Runtime
	Readiness     *health.ProbeRunner

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	stopOnce            sync.Once
	stopBackgroundTasks func()
}

// New assembles the process. stop releases storage handles and runs once,
// after the HTTP server has drained.
func New(cfg *config.Config, logger *slog.Logger, server *http.Server, sweeper *service.Sweeper, runtime *observability.Runtime, readiness *health.ProbeRunner, stop func()) *App {
	if stop == nil {
		stop = func() {}
	}
	return &App{
		Config:                       cfg,
		Logger:                       logger,
		Server:                       server,
		Sweeper:                      sweeper,
		Observability:                runtime,
		Readiness:                    readiness,
		ShutdownTimeout:              cfg.ShutdownTimeout,
		ShutdownHTTPDrainTimeout:     cfg.ShutdownHTTPDrainTimeout,
		ShutdownObservabilityTimeout: cfg.ShutdownObservabilityTimeout,
		stopBackgroundTasks:          stop,
	}
}

// Run serves HTTP and sweeps expired sessions until ctx is cancelled or the
// listener fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if a.Sweeper != nil {
		g.Go(func() error { return a.Sweeper.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.WithoutCancel(ctx))
	})
	return g.Wait()
}

// Shutdown drains HTTP, stops background tasks and flushes telemetry, each
// phase bounded by its own timeout inside the overall budget.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.ShutdownTimeout)
	defer cancel()

	var errs []error
	drainCtx, drainCancel := context.WithTimeout(ctx, a.ShutdownHTTPDrainTimeout)
	if err := a.Server.Shutdown(drainCtx); err != nil {
		a.Logger.Error("http drain failed", "error", err)
		errs = append(errs, err)
	}
	drainCancel()

	a.StopBackgroundTasks()

	obsCtx, obsCancel := context.WithTimeout(ctx, a.ShutdownObservabilityTimeout)
	if err := a.Observability.Shutdown(obsCtx); err != nil {
		a.Logger.Error("observability shutdown failed", "error", err)
		errs = append(errs, err)
	}
	obsCancel()

	a.Logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) StopBackgroundTasks() {
	a.stopOnce.Do(a.stopBackgroundTasks)
}
