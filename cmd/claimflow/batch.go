package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"claimflow/internal/pipeline"
	"claimflow/internal/service"
	"claimflow/internal/storage"
)

var (
	batchConcurrency    int
	batchSkipEvaluation bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process every complete claim in the configured storage container",
	Long: "Lists the storage container, groups the artifacts into claims, runs each complete claim through the " +
		"pipeline and uploads every result to <output_prefix>/<claim>.json. Results are also saved when a " +
		"results store is configured. Failed runs are reported in their result documents.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.ValidateStorage(); err != nil {
			return err
		}
		env, err := initPipeline(envOptions{Extract: true, Evaluate: !batchSkipEvaluation, Results: true})
		if err != nil {
			return err
		}
		defer env.Close()

		store, err := storage.New(&cfg.Storage)
		if err != nil {
			return err
		}

		opts := pipeline.BatchOptions{
			Concurrency:   cfg.Batch.Concurrency,
			RatePerSecond: cfg.Batch.RatePerSecond,
			MaxAttempts:   cfg.Batch.MaxAttempts,
			ClaimTimeout:  cfg.Batch.ClaimTimeout(),
		}
		if batchConcurrency > 0 {
			opts.Concurrency = batchConcurrency
		}

		claims := service.NewClaimService(env.RunnerFactory(), env.Runs)
		summary, err := service.NewBatchService(store, claims, env.RunnerFactory(), &cfg.Storage, opts).Run(ctx)
		if summary != nil {
			cmd.Printf("claims: %d complete, %d incomplete, %d skipped artifacts\n",
				len(summary.Grouping.Complete), len(summary.Grouping.Incomplete), len(summary.Grouping.Skipped))
			cmd.Printf("runs: %d finished, %d failed, %d uploaded, %d saved\n",
				len(summary.Results), summary.Failed(), summary.Uploaded, summary.Persisted)
		}
		return err
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "claims in flight (default batch.concurrency)")
	batchCmd.Flags().BoolVar(&batchSkipEvaluation, "skip-evaluation", false, "stop each claim after structuring")
	rootCmd.AddCommand(batchCmd)
}
