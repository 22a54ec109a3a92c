package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/link-failover/internal/registry"
	"github.com/rs/zerolog"
)

// Definition describes a service the registry may construct.
type Definition struct {
	Name        string
	Enabled     bool
	Constructor func() (registry.Service, error)
}

// ServiceRegistry manages the lifecycle of a role's services.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new, empty service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]registry.Service),
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Get returns a registered service by name.
func (sr *ServiceRegistry) Get(name string) (registry.Service, bool) {
	svc, ok := sr.services[name]
	return svc, ok
}

// RegisterServices constructs and registers the enabled definitions in order.
func (sr *ServiceRegistry) RegisterServices(definitions []Definition) error {
	registered := []string{}
	for _, def := range definitions {
		if !def.Enabled {
			continue
		}
		svc, err := def.Constructor()
		if err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to create %s service", def.Name)
			return fmt.Errorf("create %s service: %w", def.Name, err)
		}
		sr.RegisterService(def.Name, svc)
		registered = append(registered, def.Name)
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registered)
	return nil
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return err
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}
