package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/backend/orchestration"
	"github.com/giobale/dog-breed-explorer/backend/scheduler"
	"github.com/giobale/dog-breed-explorer/internal/config"
	"github.com/giobale/dog-breed-explorer/internal/handlers"
)

const shutdownTimeout = 30 * time.Second

// serve runs the HTTP API and the cron schedule until ctx is cancelled.
func serve(ctx context.Context, a *app, cfg *config.Config, log *zap.Logger) error {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(log.Named("http"))
	handlers.NewAPI(a.runs, a.pipeline, log.Named("http")).RegisterRoutes(router)
	handlers.NewCatalogAPI(a.project, log.Named("http")).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched := scheduler.NewSchedulerService(a.pipeline, cfg.Schedule.Cron, orchestration.TriggerSchedule, log.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	sched.Stop()
	log.Info("Server stopped")
	return runErr
}
