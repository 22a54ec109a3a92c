package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/benmeehan/link-failover/internal/brokerclient"
	"github.com/benmeehan/link-failover/internal/liveness"
	"github.com/benmeehan/link-failover/internal/models"
	"github.com/benmeehan/link-failover/internal/state_managers"
	"github.com/benmeehan/link-failover/pkg/file"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the broker's view of the daemon and the pending command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, _, closer, err := setup("cli")
			if err != nil {
				return err
			}
			defer closer.Close()

			client := brokerclient.New(config.Client.BrokerURL, config.Client.Secret, config.Client.Timeout)
			ctx, cancel := context.WithTimeout(context.Background(), config.Client.Timeout)
			defer cancel()

			status, err := client.GetStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch status from %s: %w", config.Client.BrokerURL, err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), status)
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status response")
	return cmd
}

func printStatus(w io.Writer, s *models.StatusResponse) {
	fmt.Fprintf(w, "Daemon status:    %s\n", s.DaemonStatus)
	if s.HasHeartbeat() {
		fmt.Fprintf(w, "Daemon mode:      %s\n", s.DaemonMode)
		fmt.Fprintf(w, "Last heartbeat:   %s (%s ago)\n", s.DaemonLastHeartbeat.Local().Format(time.RFC3339), s.HeartbeatAge().Round(time.Second))
		if s.DaemonSourceID != "" {
			fmt.Fprintf(w, "Source:           %s\n", s.DaemonSourceID)
		}
	} else {
		fmt.Fprintln(w, "Last heartbeat:   never")
	}
	if s.CommandAction != "" {
		ack := "pending"
		if s.MacAcknowledged {
			ack = "acknowledged"
		}
		fmt.Fprintf(w, "Command:          %s (%s)\n", s.CommandAction, ack)
	} else {
		fmt.Fprintln(w, "Command:          none")
	}
}

func monitorStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor-status",
		Short: "Show the decision engine's persisted state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, closer, err := setup("cli")
			if err != nil {
				return err
			}
			defer closer.Close()

			if config.Monitor.StateFile == "" {
				return fmt.Errorf("monitor.state_file is not configured")
			}
			state, err := state_managers.NewEngineStateManager(config.Monitor.StateFile, file.NewFileService(), logger).LoadState()
			if err != nil {
				return err
			}
			if state.Phase == "" {
				state.Phase = liveness.PhaseUnknown
			}
			return printJSON(cmd.OutOrStdout(), state)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
