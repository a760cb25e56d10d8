package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog, stage log and orchestration API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		a.migrateFirst = a.cfg.DatabaseMigrateOnStart
		return serve(ctx, a)
	},
}

func serve(ctx context.Context, a *app) error {
	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
	}
	defer func() {
		sctx, cancel := shutdownCtx()
		defer cancel()
		a.close(sctx)
	}()

	if err := a.start(ctx); err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	deps := handlers.RouterDeps{
		ServiceName:  a.cfg.AppName,
		Catalog:      a.catalog,
		StageLogs:    a.stageLogs,
		Orchestrator: a.orchestrator,
		Health:       a.healthChecker(),
		AllowOrigins: a.cfg.AllowOrigins,
		AllowMethods: a.cfg.AllowMethods,
	}
	if a.cfg.AuthEnabled {
		verifier, err := middleware.NewOIDCVerifier(ctx, a.cfg.AuthIssuerURL, a.cfg.AuthClientID)
		if err != nil {
			return err
		}
		deps.Verifier = verifier
	}
	router := handlers.NewRouter(a.logger, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}

	var sched *scheduler.Scheduler
	if a.cfg.ScheduleInterval > 0 {
		sched = scheduler.NewScheduler(a.orchestrator, a.cfg.ScheduleInterval, a.logger)
		if err := sched.Start(ctx); err != nil {
			return err
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.WithContext(ctx).Infof("Starting API server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	deps.Health.SetReady(true)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
	}
	deps.Health.SetReady(false)
	a.logger.WithContext(ctx).Info("Shutting down server")

	sctx, cancel := shutdownCtx()
	defer cancel()
	if sched != nil {
		if err := sched.Stop(sctx); err != nil {
			a.logger.WithContext(sctx).WithError(err).Warn("Scheduler did not stop in time")
		}
	}
	if err := srv.Shutdown(sctx); err != nil {
		a.logger.WithContext(sctx).WithError(err).Error("Server shutdown error")
	}

	a.logger.WithContext(sctx).Info("Server stopped")
	return runErr
}
