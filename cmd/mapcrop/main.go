// Package main provides the CLI entry point for mapcrop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/menta2k/mapcrop"
	"github.com/menta2k/mapcrop/internal/config"
	"github.com/menta2k/mapcrop/internal/logging"
)

const serviceName = "mapcrop"

var (
	configPath string
	logLevel   string
	logFormat  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mapcrop",
		Short: "Extract annotated regions from a historical map image",
		Long: `mapcrop resolves rectangle and polygon annotations drawn in a web map
into pixel boxes of the underlying image and saves every region as a file
named after the annotation identifier.`,
		Version:       mapcrop.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (json or yaml, default: ./mapcrop.* or "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(
		newExtractCmd(),
		newCalibrateCmd(),
		newLocateCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// setup loads the configuration and attaches a logger to the command context
func setup(cmd *cobra.Command) (context.Context, *config.Config, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	ctx, _ := logging.NewLogger(cmd.Context(), serviceName, mapcrop.Version, cfg.Logging.Level, cfg.Logging.Format)
	return ctx, cfg, nil
}
