package main

import (
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claimflow/internal/extraction"
	"claimflow/internal/grouping"
	"claimflow/internal/structuring"
)

var structureOut string

var structureCmd = &cobra.Command{
	Use:   "structure <ocr.json|statement.txt>",
	Short: "Structure transcribed statement text into a claim record",
	Long: "Reads an OCR result ({status, text, file_path}) or a plain text transcription and writes the " +
		"structured claim record to <base>_structured<ext> (.json for text input).",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input := args[0]
		text, src, err := loadStatementText(input)
		if err != nil {
			return err
		}

		env, err := initPipeline(envOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		record, err := env.Builder.Build(ctx, text, src)
		if err != nil {
			return err
		}

		out := structureOut
		if out == "" {
			out = derivedPath(input, "_structured", "")
		}
		if err := writeJSON(out, record); err != nil {
			return err
		}

		if record.IsFallback() {
			zap.L().Warn("structure: reasoning output could not be parsed, wrote fallback record",
				zap.String("output", out))
		}
		cmd.Printf("Structured record written to %s\n", out)
		return nil
	},
}

func init() {
	structureCmd.Flags().StringVarP(&structureOut, "out", "o", "", "output path (default <base>_structured<ext>)")
	rootCmd.AddCommand(structureCmd)
}

// loadStatementText reads a structure command input. JSON input must be an
// OCR result; anything else is taken as the transcription itself.
func loadStatementText(input string) (string, structuring.Source, error) {
	data, err := readInputFile(input)
	if err != nil {
		return "", structuring.Source{}, err
	}

	src := structuring.Source{File: filepath.Base(input), ClaimID: grouping.ClaimID(filepath.Base(input))}
	if !strings.EqualFold(filepath.Ext(input), ".json") {
		return string(data), src, nil
	}

	ocr, err := extraction.ParseOCRResult(data)
	if err != nil {
		return "", src, err
	}
	if ocr.FilePath != "" {
		src.File = filepath.Base(ocr.FilePath)
		src.ClaimID = grouping.ClaimID(src.File)
	}
	return ocr.Text, src, nil
}
