package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/research-bot/internal/bootstrap"
	"github.com/kirillkom/research-bot/internal/core/domain"
)

func (c *cli) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow workflow outcomes published on NATS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			bus, err := bootstrap.OpenBus(c.cfg)
			if err != nil {
				return err
			}
			defer bus.Close()

			out := cmd.OutOrStdout()
			return bus.SubscribeOutcomes(ctx, func(_ context.Context, outcome domain.WorkflowOutcome) error {
				slog.Info("outcome_received", "workflow_id", outcome.WorkflowID, "success", outcome.Success)
				return printOutcome(out, outcome)
			})
		},
	}
}

func printOutcome(w io.Writer, o domain.WorkflowOutcome) error {
	line := fmt.Sprintf("%s %-8s %s stage=%s duration=%s",
		o.FinishedAt.Format(time.RFC3339), o.Status(), o.FileName, o.Stage, o.Duration().Round(time.Millisecond))
	if o.RecordID != "" {
		line += " record=" + o.RecordID
	}
	if o.ModelUsed != "" {
		line += " model=" + o.ModelUsed
	}
	if o.Error != "" {
		line += fmt.Sprintf(" error=%q", o.Error)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
