package main

import (
	"github.com/benmeehan/link-failover/internal/brokerclient"
	"github.com/benmeehan/link-failover/internal/notify"
	"github.com/benmeehan/link-failover/internal/registry"
	"github.com/benmeehan/link-failover/internal/service_registry"
	"github.com/benmeehan/link-failover/internal/services"
	"github.com/benmeehan/link-failover/internal/state_managers"
	"github.com/benmeehan/link-failover/internal/utils"
	"github.com/benmeehan/link-failover/pkg/actuator"
	"github.com/benmeehan/link-failover/pkg/file"
	"github.com/benmeehan/link-failover/pkg/mqtt"
	"github.com/benmeehan/link-failover/pkg/shell"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run the decision engine on the backup device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, closer, err := setup("monitor")
			if err != nil {
				return err
			}
			defer closer.Close()

			notifier, shutdown, err := newNotifier(config, logger)
			if err != nil {
				return err
			}
			defer shutdown()

			fileClient := file.NewFileService()
			sr := service_registry.NewServiceRegistry(logger)
			err = sr.RegisterServices([]service_registry.Definition{
				{
					Name:    "monitor",
					Enabled: true,
					Constructor: func() (registry.Service, error) {
						return services.NewMonitorService(
							services.MonitorConfig{
								PollInterval:       config.Monitor.PollInterval,
								StalenessThreshold: config.Monitor.StalenessThreshold,
								OfflineThreshold:   config.Monitor.OfflineThreshold,
								RequestTimeout:     config.Client.Timeout,
							},
							brokerclient.New(config.Client.BrokerURL, config.Client.Secret, config.Client.Timeout),
							newActuator(config, logger),
							notifier,
							state_managers.NewEngineStateManager(config.Monitor.StateFile, fileClient, logger),
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

func newActuator(config *utils.Config, logger zerolog.Logger) actuator.Actuator {
	if config.Monitor.Actuator.DryRun {
		return actuator.Noop{Logger: logger}
	}
	runner := shell.NewRunner(config.Monitor.Actuator.MaxExecutionTime, config.Monitor.Actuator.OutputSizeLimit, logger)
	return actuator.NewCommandActuator(config.Monitor.Actuator.EnableCommand, config.Monitor.Actuator.DisableCommand, runner, logger)
}

// newNotifier always logs events and also publishes them over MQTT when a
// broker is configured. The returned func flushes pending events.
func newNotifier(config *utils.Config, logger zerolog.Logger) (notify.Notifier, func(), error) {
	notifiers := []notify.Notifier{notify.LogNotifier{Logger: logger}}

	var mqttClient *mqtt.MqttService
	if cfg := config.Notifications.MQTT; cfg.Broker != "" {
		mqttClient = mqtt.NewMqttService(file.NewFileService())
		clientID := cfg.ClientID + "-" + uuid.New().String()
		err := mqttClient.Initialize(mqtt.Options{
			Broker:     cfg.Broker,
			ClientID:   clientID,
			CACertPath: cfg.CACertificate,
			Username:   cfg.Username,
			Password:   cfg.Password,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize MQTT connection")
			return nil, nil, err
		}
		logger.Info().Str("client_id", clientID).Str("topic", cfg.Topic).Msg("MQTT notifications enabled")
		notifiers = append(notifiers, notify.NewMQTTNotifier(mqttClient, cfg.Topic, cfg.QOS))
	}

	dispatcher := notify.NewDispatcher(notifiers, config.Notifications.Timeout, logger)
	return dispatcher, func() {
		dispatcher.Close()
		if mqttClient != nil {
			mqttClient.Disconnect(250)
		}
	}, nil
}
