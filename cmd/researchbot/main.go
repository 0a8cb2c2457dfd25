// Command researchbot files research PDFs shared in Slack into Airtable.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/research-bot/internal/bootstrap"
	"github.com/kirillkom/research-bot/internal/config"
	"github.com/kirillkom/research-bot/internal/observability/logging"
)

func main() {
	config.LoadDotEnv()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type cli struct {
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:               "researchbot",
		Short:             "Slack research PDF bot",
		Long:              "researchbot summarizes research PDFs shared in Slack, files them in Airtable and posts a summary back to the thread.",
		SilenceUsage:      true,
		PersistentPreRunE: c.load,
	}
	root.AddCommand(
		c.newServeCmd(),
		c.newExportCmd(),
		c.newWatchCmd(),
		c.newHistoryCmd(),
	)
	return root
}

func (c *cli) load(*cobra.Command, []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg
	slog.SetDefault(logging.New(bootstrap.ServiceName, cfg.LogLevel, cfg.LogFormat))
	return nil
}
