package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tabcurator/tabcurator/internal/daemon"
	"github.com/tabcurator/tabcurator/internal/daemon/components"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start TabCurator in background daemon mode",
	Long:  `Starts TabCurator as a long-running service using component lifecycle orchestration. It tracks tab activity, runs scheduled suspension sweeps and serves the message API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		daemonMgr, err := daemon.NewDaemon(cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}

		hostComp := components.NewHostComponent(cfg)
		stateComp := components.NewStateComponent(cfg, hostComp)
		curatorComp := components.NewCuratorComponent(hostComp, stateComp)
		channelComp := components.NewChannelComponent(cfg, curatorComp, stateComp)
		schedulerComp := components.NewSchedulerComponent(cfg, hostComp, stateComp, curatorComp, channelComp)
		apiComp := components.NewAPIComponent(cfg, channelComp)

		daemonMgr.AddComponent(hostComp)
		daemonMgr.AddComponent(stateComp)
		daemonMgr.AddComponent(curatorComp)
		daemonMgr.AddComponent(channelComp)
		daemonMgr.AddComponent(schedulerComp)
		daemonMgr.AddComponent(apiComp)

		slog.Info("TabCurator daemon starting up...", "port", cfg.Server.Port, "state_path", cfg.Daemon.StatePath)
		if err := daemonMgr.Run(context.Background()); err != nil {
			// Cancellation via signal is a graceful shutdown case for CLI.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("TabCurator daemon stopped gracefully")
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		slog.Info("TabCurator daemon stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
