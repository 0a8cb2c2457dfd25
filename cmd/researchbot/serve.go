package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/research-bot/internal/bootstrap"
)

const shutdownTimeout = 10 * time.Second

var errEventStreamClosed = errors.New("socket mode event stream closed")

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect over socket mode and process shared PDFs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	app, err := bootstrap.New(ctx, c.cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	server := &http.Server{
		Addr:              ":" + c.cfg.MetricsPort,
		Handler:           app.Router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("ops_server_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("ops_server_shutdown_failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		app.Handler.AnnounceStartup(gctx)
		return runSocketMode(gctx, app.Listener.Run)
	})

	err = g.Wait()
	slog.Info("serve_stopped", "error", err)
	return err
}

// runSocketMode fails when the listener returns before ctx is done, so the
// ops server does not outlive the Slack connection.
func runSocketMode(ctx context.Context, run func(context.Context) error) error {
	if err := run(ctx); err != nil {
		return fmt.Errorf("socket mode: %w", err)
	}
	if ctx.Err() == nil {
		return errEventStreamClosed
	}
	return nil
}
