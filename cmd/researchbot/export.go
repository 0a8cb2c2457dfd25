package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/research-bot/internal/bootstrap"
	"github.com/kirillkom/research-bot/internal/core/ports"
	"github.com/kirillkom/research-bot/internal/infrastructure/export/xlsx"
)

func (c *cli) newExportCmd() *cobra.Command {
	var (
		out     string
		formula string
		table   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the PDFs table to an XLSX workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cfg.ValidateAirtable(); err != nil {
				return err
			}
			if table == "" {
				table = c.cfg.AirtableTable
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			n, err := exportRecords(cmd.Context(), bootstrap.NewRecordStore(c.cfg), table, formula, f)
			if closeErr := f.Close(); err == nil && closeErr != nil {
				err = fmt.Errorf("close output: %w", closeErr)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Path to the XLSX file to write (required)")
	cmd.Flags().StringVar(&formula, "formula", "", "Airtable filterByFormula expression")
	cmd.Flags().StringVar(&table, "table", "", "Table name (defaults to AIRTABLE_PDFS_TABLE)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// exportRecords writes every matching row to w and returns how many were
// written. A failed search yields an empty workbook.
func exportRecords(ctx context.Context, records ports.RecordExporter, table, formula string, w io.Writer) (int, error) {
	rows := records.Search(ctx, table, formula)
	if err := xlsx.Write(w, rows); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(rows), nil
}
