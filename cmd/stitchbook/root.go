package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "stitchbook",
	Short: "Stitchbook - offline-first tailoring shop manager",
	Long: "Stitchbook manages customers, orders, measurements, inventory, and tasks\n" +
		"for a tailoring shop. All data is stored locally first and synchronized\n" +
		"with the hosted backend whenever a connection is available.",
	RunE: runAgent,
}

// runAgent is the long-running mode: it keeps the connectivity monitor
// polling and drains the operation queue on every reconnect, until a
// shutdown signal arrives.
func runAgent(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var wg sync.WaitGroup
	startWorker(ctx, &wg, "connectivity", a.monitor.Run)

	slog.Info("sync agent running", "version", Version)

	<-ctx.Done()
	slog.Info("shutdown initiated")

	wg.Wait()
	slog.Info("shutdown complete")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
