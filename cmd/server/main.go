package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wireboard-server/internal/app"
	"github.com/vovakirdan/wireboard-server/internal/config"
	"github.com/vovakirdan/wireboard-server/internal/log"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	root := &cobra.Command{
		Use:           "wireboard",
		Short:         "Real-time shared whiteboard server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath, overrides)
		},
	}

	flags := root.Flags()
	flags.StringVar(&configPath, "config", "", "path to config.yaml")
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.StorageDriver, "storage", "", "storage driver (sqlite, memory)")
	flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version)
		},
	})

	return root
}

func serve(parent context.Context, configPath string, overrides config.Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	bootLogger := log.New(overrides.LogLevel)
	cfg, resolvedPath, err := config.Load(bootLogger, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(overrides)

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", resolvedPath).Str("version", version).Msg("configuration loaded")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting wireboard server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
