package main

import (
	"errors"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/extraction"
	"claimflow/internal/grouping"
	"claimflow/internal/service"
)

var (
	processSingle         bool
	processSkipEvaluation bool
)

var processCmd = &cobra.Command{
	Use:   "process <front image>",
	Short: "Run one claim through extraction, structuring and policy evaluation",
	Long: "Locates the sibling _back image of the given front image, runs the full pipeline, prints the result " +
		"and writes it to <claim>_processed.json beside the input. A failed run is reported in the output, " +
		"not as a command error.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		bundle, err := localBundle(args[0], processSingle)
		if err != nil {
			return err
		}

		env, err := initPipeline(envOptions{Extract: true, Evaluate: !processSkipEvaluation, Results: true})
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.RunnerFactory()(extraction.FileReader{}).Run(ctx, bundle)
		res.Attempts = 1

		body, err := marshalOutput(res)
		if err != nil {
			return err
		}
		_, _ = cmd.OutOrStdout().Write(body)

		out := filepath.Join(filepath.Dir(args[0]), bundle.ClaimID+"_processed.json")
		if err := writeJSON(out, res); err != nil {
			return err
		}

		claims := service.NewClaimService(nil, env.Runs)
		if err := claims.Save(ctx, res); err != nil && !errors.Is(err, domain.ErrMissingConfig) {
			zap.L().Error("process: failed to persist run", zap.String("run_id", res.RunID.String()), zap.Error(err))
		}

		zap.L().Info("process: run finished",
			zap.String("claim_id", res.ClaimID), zap.String("state", string(res.State)), zap.String("output", out))
		return nil
	},
}

func init() {
	processCmd.Flags().BoolVar(&processSingle, "single", false, "process the image alone, without a back side")
	processCmd.Flags().BoolVar(&processSkipEvaluation, "skip-evaluation", false, "stop after structuring")
	rootCmd.AddCommand(processCmd)
}

// localBundle builds the bundle for a front image on disk.
func localBundle(front string, single bool) (domain.ClaimBundle, error) {
	if err := requireFile(front); err != nil {
		return domain.ClaimBundle{}, err
	}
	claimID := grouping.ClaimID(filepath.Base(front))
	if single {
		return extraction.SingleImageBundle(claimID, front), nil
	}

	back, ok := grouping.Sibling(front)
	if !ok {
		return domain.ClaimBundle{}, eris.Wrapf(domain.ErrInvalidInput,
			"%s does not follow the <claim>_<side>.<jpg|jpeg> naming contract; use --single", front)
	}
	if err := requireFile(back); err != nil {
		return domain.ClaimBundle{}, err
	}

	grouped := grouping.Group([]string{front, back})
	if len(grouped.Complete) != 1 {
		return domain.ClaimBundle{}, eris.Wrapf(domain.ErrIncompleteBundle, "%s", front)
	}
	return grouped.Complete[0], nil
}
