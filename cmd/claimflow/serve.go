package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claimflow/internal/handler"
	"claimflow/internal/router"
	"claimflow/internal/service"
)

const shutdownTimeout = 30 * time.Second

var serveSkipEvaluation bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(envOptions{Extract: true, Evaluate: !serveSkipEvaluation, Results: true})
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Server.Environment == "production" {
			gin.SetMode(gin.ReleaseMode)
		}

		claimSvc := service.NewClaimService(env.RunnerFactory(), env.Runs)
		r := router.Setup(
			cfg.CORS.AllowedOrigins,
			handler.NewClaimHandler(claimSvc, cfg.Storage.MaxUploadMB),
			handler.NewHealthHandler(version),
		)

		srv := &http.Server{
			Addr:         cfg.Server.Port,
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("server starting", zap.String("addr", srv.Addr),
				zap.Bool("evaluation", env.Evaluator != nil), zap.Bool("results_store", env.Runs != nil))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return eris.Wrap(err, "server")
			}
			return nil
		case <-ctx.Done():
		}

		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveSkipEvaluation, "skip-evaluation", false, "stop each upload after structuring")
	rootCmd.AddCommand(serveCmd)
}
