// Command loadgate-target runs a local recommendation service to aim
// loadgate at.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/loadgate/internal/target"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "loadgate-target",
		Short:        "Serve /health and /predict for local load tests",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         serve,
	}
	cmd.Flags().String("addr", ":8000", "Listen address")
	cmd.Flags().Duration("delay", 0, "Delay added to every /predict response")
	cmd.Flags().Int64("fail-every", 0, "Return 503 for every Nth /predict request (0 disables)")
	return cmd
}

func serve(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	delay, _ := cmd.Flags().GetDuration("delay")
	failEvery, _ := cmd.Flags().GetInt64("fail-every")

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	srv := target.NewServer(addr, target.Config{Delay: delay, FailEvery: failEvery}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.Duration("delay", delay), zap.Int64("failEvery", failEvery))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
