// Package actuator switches the backup link. The hotspot is the usual target
// but anything reachable through a shell command will do.
package actuator

import (
	"context"
	"fmt"

	"github.com/benmeehan/link-failover/pkg/shell"
	"github.com/rs/zerolog"
)

// Actuator enables or disables the backup link.
type Actuator interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// CommandActuator runs configured shell commands to toggle the backup link.
type CommandActuator struct {
	enableCommand  string
	disableCommand string
	runner         *shell.Runner
	logger         zerolog.Logger
}

// NewCommandActuator creates a CommandActuator. An empty command makes the
// matching operation fail so a misconfiguration is never silent.
func NewCommandActuator(enableCommand, disableCommand string, runner *shell.Runner, logger zerolog.Logger) *CommandActuator {
	return &CommandActuator{
		enableCommand:  enableCommand,
		disableCommand: disableCommand,
		runner:         runner,
		logger:         logger,
	}
}

func (a *CommandActuator) Enable(ctx context.Context) error {
	return a.run(ctx, "enable", a.enableCommand)
}

func (a *CommandActuator) Disable(ctx context.Context) error {
	return a.run(ctx, "disable", a.disableCommand)
}

func (a *CommandActuator) run(ctx context.Context, op, cmd string) error {
	if cmd == "" {
		return fmt.Errorf("no %s command configured", op)
	}
	out, err := a.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%s backup link: %w", op, err)
	}
	a.logger.Info().Str("operation", op).Str("output", out).Msg("Backup link actuated")
	return nil
}

// Noop logs instead of acting. It backs dry runs and setups where the backup
// device toggles itself from the broker's command record.
type Noop struct {
	Logger zerolog.Logger
}

func (n Noop) Enable(context.Context) error {
	n.Logger.Warn().Msg("Dry run: backup link would be enabled")
	return nil
}

func (n Noop) Disable(context.Context) error {
	n.Logger.Warn().Msg("Dry run: backup link would be disabled")
	return nil
}
