package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/link-failover/internal/service_registry"
	"github.com/benmeehan/link-failover/internal/utils"
	"github.com/benmeehan/link-failover/pkg/file"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

var configPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:           "failover",
		Short:         "failover - relay-based link failover",
		Long:          `failover moves a host from its primary link to a tethered backup link when a daemon on the primary device stops reporting in through a broker.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to the configuration file")

	// Roles
	rootCmd.AddCommand(brokerCmd())
	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(monitorCmd())

	// Operator tools
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(monitorStatusCmd())
	rootCmd.AddCommand(commandCmd())
	rootCmd.AddCommand(testFailoverCmd())
	rootCmd.AddCommand(pauseCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads and validates the configuration and builds the role's logger.
func setup(role string) (*utils.Config, zerolog.Logger, io.Closer, error) {
	config, err := utils.LoadConfig(configPath, file.NewFileService())
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closer, err := utils.NewLogger(role, config.Logging.Level, config.Logging.Format, config.Logging.Dir)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	warnings, err := config.Validate()
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}
	if err != nil {
		closer.Close()
		return nil, zerolog.Nop(), nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, logger, closer, nil
}

// run starts the registered services and blocks until SIGINT or SIGTERM.
func run(sr *service_registry.ServiceRegistry, logger zerolog.Logger) error {
	if err := sr.StartServices(); err != nil {
		return err
	}
	logger.Info().Msg("All services started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down gracefully...")
	return sr.StopServices()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
