package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/research-bot/internal/bootstrap"
	"github.com/kirillkom/research-bot/internal/core/domain"
)

func (c *cli) newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent workflow runs from the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			journal, closeDB, err := bootstrap.OpenJournal(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			runs, err := journal.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func printHistory(w io.Writer, runs []domain.WorkflowOutcome) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tFILE\tSTATUS\tSTAGE\tRECORD\tMODEL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.FinishedAt.Format(time.RFC3339), r.FileName, r.Status(), r.Stage, dash(r.RecordID), dash(r.ModelUsed))
	}
	return tw.Flush()
}

func dash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
