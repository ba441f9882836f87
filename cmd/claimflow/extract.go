package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"claimflow/internal/domain"
	"claimflow/internal/extraction"
	"claimflow/internal/grouping"
)

var extractOut string

var extractCmd = &cobra.Command{
	Use:   "extract <front image> [back image]",
	Short: "Transcribe statement images with the vision model",
	Long: "Sends the front image, and the back image when given, to the vision model and writes the OCR result " +
		"({status, text, file_path}) to <base>_ocr.json beside the front image.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		for _, path := range args {
			if err := requireFile(path); err != nil {
				return err
			}
		}

		env, err := initPipeline(envOptions{Extract: true})
		if err != nil {
			return err
		}
		defer env.Close()

		front := args[0]
		claimID := grouping.ClaimID(filepath.Base(front))
		bundle := extraction.SingleImageBundle(claimID, front)
		if len(args) == 2 {
			bundle = domain.ClaimBundle{
				ClaimID: claimID,
				Sides:   map[domain.ImageSide]string{domain.SideFront: front, domain.SideBack: args[1]},
			}
		}

		raw := env.Adapter.Extract(ctx, bundle)
		out := extractOut
		if out == "" {
			out = derivedPath(front, "_ocr", ".json")
		}
		if err := writeJSON(out, extraction.NewOCRResult(raw, front)); err != nil {
			return err
		}
		if !raw.Succeeded() {
			return eris.Errorf("extraction failed for %s: %s (details written to %s)", front, raw.Error, out)
		}

		cmd.Printf("OCR result written to %s\n", out)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "output path (default <base>_ocr.json)")
	rootCmd.AddCommand(extractCmd)
}
