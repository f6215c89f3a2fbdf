package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/review-cli/internal/api"
)

const shutdownTimeout = 15 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the calibration and accuracy HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		warmCalibrations(ctx, env)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewRouter(api.NewHandler(env.Calibration, env.Accuracy), cfg.Server),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// warmCalibrations loads every stored calibration so the first conversion
// request of a match does not pay for the solve.
func warmCalibrations(ctx context.Context, env *appEnv) {
	cals, err := env.Store.ListCalibrations(ctx)
	if err != nil {
		zap.L().Warn("calibration warmup skipped", zap.Error(err))
		return
	}
	for _, c := range cals {
		if err := env.Calibration.Load(ctx, c.MatchID); err != nil {
			zap.L().Warn("calibration warmup failed", zap.Int64("match_id", c.MatchID), zap.Error(err))
		}
	}
	zap.L().Info("calibrations loaded", zap.Int("count", len(cals)))
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
