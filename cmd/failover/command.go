package main

import (
	"context"
	"fmt"
	"time"

	"github.com/benmeehan/link-failover/internal/brokerclient"
	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/pkg/file"
	"github.com/benmeehan/link-failover/pkg/idle"
	"github.com/spf13/cobra"
)

func commandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "command",
		Short: "Issue a command to the backup device through the broker",
	}

	cmd.AddCommand(pushCommandCmd(constants.ActionEnable, "Ask the backup device to enable the backup link"))
	cmd.AddCommand(pushCommandCmd(constants.ActionDisable, "Ask the backup device to disable the backup link"))

	return cmd
}

func pushCommandCmd(action constants.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: short,
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

			resp, err := client.PushCommand(ctx, action)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func testFailoverCmd() *cobra.Command {
	var hold time.Duration

	cmd := &cobra.Command{
		Use:   "test-failover",
		Short: "Run the monitor's actuator once to check the backup link can be switched",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, closer, err := setup("cli")
			if err != nil {
				return err
			}
			defer closer.Close()

			act := newActuator(config, logger)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if err := act.Enable(ctx); err != nil {
				return fmt.Errorf("enable failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Backup link enabled")
			if hold <= 0 {
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Holding for %s\n", hold)
			time.Sleep(hold)
			if err := act.Disable(ctx); err != nil {
				return fmt.Errorf("disable failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Backup link disabled")
			return nil
		},
	}

	cmd.Flags().DurationVar(&hold, "hold", 0, "Disable the backup link again after this long (0 leaves it enabled)")
	return cmd
}

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Mark the primary device as deliberately idle so heartbeats report paused",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return togglePause(cmd, true)
		},
	}
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Clear the pause flag so heartbeats report active again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return togglePause(cmd, false)
		},
	}
}

func togglePause(cmd *cobra.Command, pause bool) error {
	config, _, closer, err := setup("cli")
	if err != nil {
		return err
	}
	defer closer.Close()

	flag := idle.NewFlagFileDetector(config.Daemon.PauseFlagFile, file.NewFileService())
	if pause {
		if err := flag.Pause(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Paused (%s)\n", config.Daemon.PauseFlagFile)
		return nil
	}
	if err := flag.Resume(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Resumed")
	return nil
}
