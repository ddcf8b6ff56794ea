package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AdityaJorim007/swift-2026-course/internal/app"
	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/logging"
)

var (
	configPath string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "courseagent",
		Short: "Autonomous Swift course content agent",
		Long: "courseagent collects Swift ecosystem signals, extracts topics, " +
			"generates course chapters and publishes them to the course repository.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "force debug logging")

	rootCmd.AddCommand(runCmd(), serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration with CLI flags taking precedence over
// the environment.
func loadConfig() config.Config {
	var cfg config.Config
	if configPath != "" {
		cfg = config.LoadFile(configPath)
	} else {
		cfg = config.Load()
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	return cfg
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute a single pipeline cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			logger := logging.New(cfg.Logging.Level)

			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := a.RunOnce(ctx)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run pipeline cycles on the configured interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			logger := logging.New(cfg.Logging.Level)

			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.Serve(ctx)
		},
	}
}
