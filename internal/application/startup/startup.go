// Package startup boots and tears down the engine process.
package startup

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/popforge/popforge-go/internal/application/container"
	"github.com/popforge/popforge-go/internal/presentation/http/server"
)

// Run boots the engine, serves until a termination signal, and drains
// cleanly. It is the whole lifecycle of the process.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := container.New(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	deps.Logger.Startup().Info("PopForge engine starting",
		slog.Int("shops", len(deps.ShopManager.Domains())),
		slog.Bool("engineEnabled", deps.SessionService.Enabled()))

	go deps.CleanupWorker.Run(ctx)

	srv := server.New(deps)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	deps.Logger.Shutdown().Info("Termination signal received, draining")
	if err := srv.Shutdown(context.Background()); err != nil {
		deps.Logger.Shutdown().Error("Drain failed", slog.String("error", err.Error()))
		return err
	}

	deps.Logger.Shutdown().Info("Shutdown complete")
	return nil
}
