package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/datallboy/bossfetch/internal/api"
	"github.com/datallboy/bossfetch/internal/app"
	"github.com/datallboy/bossfetch/internal/engine"
	"github.com/datallboy/bossfetch/internal/events"
	"github.com/datallboy/bossfetch/internal/mirror"
	"github.com/datallboy/bossfetch/internal/store"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the job queue behind an HTTP API",
		Args:  positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(parent context.Context) error {
	if err := c.cfg.RequireLocalRoot(); err != nil {
		return usageError(err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.NewPersistentStore(ctx, c.cfg.Store.DSN, c.log)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer s.Close()

	mgr := engine.NewJobManager(s, c.log, c.cfg.Fetch.Workers, true)

	observers := []engine.Observer{mgr}
	if url := c.cfg.Events.RabbitMQURL; url != "" {
		pub, err := events.Dial(url, c.cfg.Events.Exchange, c.log)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer pub.Close()
		observers = append(observers, pub)
	}

	coord := engine.NewCoordinator(c.log, mirror.Factory(parent, c.cfg.Mirror), engine.Options{
		GracePeriod: c.cfg.Fetch.GracePeriod,
		KillTimeout: c.cfg.Fetch.KillTimeout,
		Observers:   observers,
	})

	appCtx := app.NewContext(c.cfg, c.log)
	appCtx.Store = s
	appCtx.Jobs = mgr

	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		mgr.Start(ctx, coord)
	}()

	e := echo.New()
	api.RegisterRoutes(e, appCtx)

	srv := &http.Server{
		Addr:              ":" + c.cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		c.log.Info("Serving API on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		stop()
		<-queueDone
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	c.log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		c.log.Error("HTTP shutdown: %v", err)
	}

	// The active job is interrupted with ctx and left queued for the next start
	<-queueDone
	return nil
}
