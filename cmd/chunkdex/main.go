package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codegrove/chunkdex/internal/config"
	"github.com/codegrove/chunkdex/internal/mcp"
	"github.com/codegrove/chunkdex/internal/taskstore"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunkdex",
		Short: "MCP server exposing chunked views of source trees",
		Long: `chunkdex serves code and document chunks over the Model Context Protocol.
It analyzes configured project roots, keeps the analysis current as files
change, and answers chunk queries on stdio.`,
		Version: fmt.Sprintf("%s (build time %s, sqlite driver %s/%s)",
			version, buildTime, taskstore.BuildMode, taskstore.DriverName),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	return cmd
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	slog.Info("chunkdex starting",
		slog.String("version", version),
		slog.String("sqlite_driver", taskstore.DriverName),
		slog.String("build_mode", taskstore.BuildMode))

	server, err := mcp.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		slog.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		slog.Info("shutting down", slog.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// setupLogging routes structured logs to stderr and, when configured, a log
// file. Stdout stays untouched: it carries the MCP protocol.
func setupLogging(cfg *config.Config) error {
	writers := []io.Writer{os.Stderr}
	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
	}
	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	slog.SetDefault(slog.New(handler))
	return nil
}
