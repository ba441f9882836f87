package main

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"claimflow/internal/domain"
	"claimflow/internal/export"
	"claimflow/internal/service"
)

var (
	exportFormat  string
	exportOut     string
	exportClaimID string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored claim runs as CSV or XLSX",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(exportFormat)
		if format != "csv" && format != "xlsx" {
			return eris.Wrapf(domain.ErrInvalidInput, "unknown export format %q", exportFormat)
		}
		if format == "xlsx" && exportOut == "" {
			return eris.Wrap(domain.ErrInvalidInput, "--out is required for xlsx")
		}

		runs, db, err := requireResults()
		if err != nil {
			return err
		}
		defer db.Close()

		svc := service.NewClaimService(nil, runs)
		all, err := service.AllRuns(cmd.Context(), svc, exportClaimID)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOut)
			}
			defer f.Close()
			w = f
		}

		if format == "xlsx" {
			err = writeXLSX(w, all)
		} else {
			err = writeCSV(w, all)
		}
		if err != nil {
			return err
		}
		if exportOut != "" {
			cmd.Printf("exported %d runs to %s\n", len(all), exportOut)
		}
		return nil
	},
}

func writeCSV(w io.Writer, runs []domain.ClaimRun) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(export.BOM); err != nil {
		return eris.Wrap(err, "write csv")
	}
	cw := export.NewWriter(bw)
	if err := cw.WriteHeader(); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	if err := cw.WriteRuns(runs); err != nil {
		return eris.Wrap(err, "write csv rows")
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "write csv")
	}
	return eris.Wrap(bw.Flush(), "write csv")
}

func writeXLSX(w io.Writer, runs []domain.ClaimRun) error {
	xw, err := export.NewXLSXWriter()
	if err != nil {
		return err
	}
	defer xw.Close()
	if err := xw.WriteHeader(); err != nil {
		return err
	}
	if err := xw.WriteRuns(runs); err != nil {
		return err
	}
	_, err = xw.WriteTo(w)
	return err
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv or xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (csv defaults to stdout)")
	exportCmd.Flags().StringVar(&exportClaimID, "claim-id", "", "only runs of this claim")
	rootCmd.AddCommand(exportCmd)
}
