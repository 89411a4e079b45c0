package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/descentviz/internal/server"
	"github.com/cwbudde/descentviz/internal/store"
	"github.com/spf13/cobra"
)

var noStore bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP comparison service",
	Long: `Serves the runs API under /api/v1 and Prometheus metrics under /metrics.
Finished runs are saved under --data-dir unless --no-store is given.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().String("data-dir", "./data", "Base directory for saved runs")
	serveCmd.Flags().BoolVar(&noStore, "no-store", false, "Keep runs in memory only")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var runStore store.Store
	if !noStore {
		fs, err := store.NewFSStore(settings.DataDir)
		if err != nil {
			return fmt.Errorf("failed to create run store: %w", err)
		}
		runStore = fs
	}

	srv := server.NewServer(settings.Addr, runStore, server.WithDefaults(*settings))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Signal received, shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
