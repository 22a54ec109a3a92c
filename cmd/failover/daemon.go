package main

import (
	"time"

	"github.com/benmeehan/link-failover/internal/brokerclient"
	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/registry"
	"github.com/benmeehan/link-failover/internal/service_registry"
	"github.com/benmeehan/link-failover/internal/services"
	"github.com/benmeehan/link-failover/internal/utils"
	"github.com/benmeehan/link-failover/pkg/connectivity"
	"github.com/benmeehan/link-failover/pkg/file"
	"github.com/benmeehan/link-failover/pkg/identity"
	"github.com/benmeehan/link-failover/pkg/idle"
	"github.com/benmeehan/link-failover/pkg/shell"
	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the liveness source on the primary device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, closer, err := setup("daemon")
			if err != nil {
				return err
			}
			defer closer.Close()

			fileClient := file.NewFileService()
			sourceInfo := identity.NewSourceInfo(config.Daemon.IdentityFile, fileClient)
			if err := sourceInfo.LoadOrCreate(); err != nil {
				logger.Error().Err(err).Msg("Failed to load source identity")
				return err
			}
			logger.Info().Str("source_id", sourceInfo.GetSourceID()).Str("version", version).Msg("Daemon identity loaded")

			runner := shell.NewRunner(constants.DefaultMaxExecutionTime*time.Second, constants.DefaultOutputSizeLimit, logger)
			client := brokerclient.New(config.Client.BrokerURL, config.Client.Secret, config.Client.Timeout)

			sr := service_registry.NewServiceRegistry(logger)
			err = sr.RegisterServices([]service_registry.Definition{
				{
					Name:    "heartbeat",
					Enabled: true,
					Constructor: func() (registry.Service, error) {
						return services.NewHeartbeatService(
							config.Daemon.HeartbeatInterval,
							config.Client.Timeout,
							version,
							sourceInfo,
							idleDetector(config, fileClient, runner),
							client,
							logger,
						), nil
					},
				},
				{
					Name:    "connectivity",
					Enabled: config.Daemon.Connectivity.Enabled,
					Constructor: func() (registry.Service, error) {
						return services.NewConnectivityService(
							services.ConnectivityConfig{
								CheckInterval:     config.Daemon.Connectivity.CheckInterval,
								FailureThreshold:  config.Daemon.Connectivity.FailureThreshold,
								RecoveryThreshold: config.Daemon.Connectivity.RecoveryThreshold,
								RequestTimeout:    config.Client.Timeout,
								JoinCommand:       config.Daemon.Connectivity.JoinCommand,
							},
							newProber(config),
							linkChecker(config, runner),
							client,
							runner,
							logger,
						), nil
					},
				},
			})
			if err != nil {
				return err
			}
			return run(sr, logger)
		},
	}
}

func idleDetector(config *utils.Config, fileClient file.FileOperations, runner *shell.Runner) idle.Detector {
	detectors := idle.Any{idle.NewFlagFileDetector(config.Daemon.PauseFlagFile, fileClient)}
	if config.Daemon.IdleCommand != "" {
		detectors = append(detectors, idle.NewCommandDetector(config.Daemon.IdleCommand, runner))
	}
	return detectors
}

func newProber(config *utils.Config) connectivity.Prober {
	conn := config.Daemon.Connectivity
	var opts []connectivity.Option
	if conn.PrimaryInterface != "" {
		opts = append(opts, connectivity.WithPrimaryInterface(conn.PrimaryInterface))
	}
	return connectivity.NewNetProber(conn.ProbeAddress, conn.ProbeTimeout, opts...)
}

func linkChecker(config *utils.Config, runner *shell.Runner) connectivity.LinkChecker {
	if config.Daemon.Connectivity.PrimaryCheck == "" {
		return nil
	}
	return connectivity.NewCommandLinkChecker(config.Daemon.Connectivity.PrimaryCheck, runner)
}
