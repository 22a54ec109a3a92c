package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/benmeehan/link-failover/internal/broker"
	"github.com/benmeehan/link-failover/internal/registry"
	"github.com/benmeehan/link-failover/internal/server"
	"github.com/benmeehan/link-failover/internal/service_registry"
	"github.com/benmeehan/link-failover/internal/services"
	"github.com/benmeehan/link-failover/internal/utils"
	"github.com/benmeehan/link-failover/pkg/kvstore"
	"github.com/spf13/cobra"
)

func brokerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "broker",
		Short: "Run the relay holding heartbeat and command records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, closer, err := setup("broker")
			if err != nil {
				return err
			}
			defer closer.Close()

			if !config.BrokerSecretConfigured() {
				return errors.New("broker.secret or broker.secret_bcrypt must be set")
			}
			secrets, err := broker.NewSecretVerifier(config.Broker.Secret, config.Broker.SecretBcrypt)
			if err != nil {
				return err
			}

			store, sweepers, err := openStore(config)
			if err != nil {
				return err
			}
			defer store.Close()
			logger.Info().Str("backend", config.Broker.Store.Backend).Msg("Record store opened")

			b, err := broker.New(store, secrets, broker.Config{
				FreshnessWindow:     config.Broker.FreshnessWindow,
				Retention:           config.Broker.Retention,
				MinDaemonVersion:    config.Broker.MinDaemonVersion,
				RequireStatusSecret: config.Broker.RequireStatusSecret,
			}, logger)
			if err != nil {
				return err
			}
			sweepers = append([]services.Sweeper{b}, sweepers...)

			sr := service_registry.NewServiceRegistry(logger)
			err = sr.RegisterServices([]service_registry.Definition{
				{
					Name:    "http",
					Enabled: true,
					Constructor: func() (registry.Service, error) {
						return services.NewHTTPService(config.Broker.ListenAddr, server.New(b, logger).Handler(), logger), nil
					},
				},
				{
					Name:    "housekeeping",
					Enabled: true,
					Constructor: func() (registry.Service, error) {
						return services.NewHousekeepingService(config.Broker.SweepInterval, logger, sweepers...), nil
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

// openStore opens the configured backend along with any backend-specific
// reclamation the housekeeping loop should run.
func openStore(config *utils.Config) (kvstore.Store, []services.Sweeper, error) {
	switch config.Broker.Store.Backend {
	case "memory":
		store := kvstore.NewMemoryStore()
		purge := services.SweepFunc(func(context.Context) (int, error) { return store.Purge(), nil })
		return store, []services.Sweeper{purge}, nil
	case "badger":
		store, err := kvstore.NewBadgerStore(config.Broker.Store.DataDir, config.Broker.Store.GCInterval)
		return store, nil, err
	case "etcd":
		store, err := kvstore.NewEtcdStore(config.Broker.Store.Etcd.Endpoints, config.Broker.Store.Etcd.Prefix, config.Broker.Store.Etcd.DialTimeout)
		return store, nil, err
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", config.Broker.Store.Backend)
	}
}
