package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claimflow/internal/domain"
)

var evaluateOut string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <structured.json>",
	Short: "Evaluate a structured claim record against retrieved policy documents",
	Long:  "Reads a structured claim record and writes it, with policy_evaluation attached, to <base>_with_policy_evaluation<ext>.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input := args[0]
		data, err := readInputFile(input)
		if err != nil {
			return err
		}
		var record domain.ClaimRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return eris.Wrapf(domain.ErrInvalidInput, "%s is not a claim record: %v", input, err)
		}

		env, err := initPipeline(envOptions{Evaluate: true})
		if err != nil {
			return err
		}
		defer env.Close()

		evaluated, err := env.Evaluator.Evaluate(ctx, &record)
		if err != nil {
			return err
		}

		out := evaluateOut
		if out == "" {
			out = derivedPath(input, "_with_policy_evaluation", "")
		}
		if err := writeJSON(out, evaluated); err != nil {
			return err
		}

		if evaluated.PolicyEvaluation.IsFallback() {
			zap.L().Warn("evaluate: reasoning output could not be parsed, wrote fallback evaluation",
				zap.String("output", out))
		}
		cmd.Printf("Policy evaluation written to %s\n", out)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateOut, "out", "o", "", "output path (default <base>_with_policy_evaluation<ext>)")
	rootCmd.AddCommand(evaluateCmd)
}
