package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"psnrelay/internal/daemonctl"
	"psnrelay/internal/preflight"
)

const (
	stopGracePeriod  = 5 * time.Second
	startWaitTimeout = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the relay in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, daemonLaunchOptions(ctx, startDiagnostic), startWaitTimeout)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			result, err := daemonctl.StopAndTerminate(cmd.Context(), client, ctx.configValue(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in %s; killed pid %d\n", stopGracePeriod, result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartDiagnostic bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the background relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(
				cmd.Context(),
				client,
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartDiagnostic),
				stopGracePeriod,
				startWaitTimeout,
			)
			if err != nil {
				return err
			}
			if result.WasRunning {
				if result.Stop.ForcedKill {
					fmt.Fprintf(stdout, "Killed unresponsive daemon (pid %d)\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show relay status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, statusErr := client.Status(cmd.Context())
			if statusJSON {
				if statusErr != nil {
					return wrapDialError(statusErr, ctx.baseURL())
				}
				return writeJSON(cmd, status)
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			if statusErr != nil {
				for _, line := range renderSectionHeader("Relay", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "not reachable at "+ctx.baseURL(), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Default mode", statusInfo, displayMode(cfg.Scene.DefaultMode), colorize))
			} else {
				for _, line := range renderStatus(status, colorize) {
					fmt.Fprintln(stdout, line)
				}
			}

			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("System Checks", colorize) {
				fmt.Fprintln(stdout, line)
			}
			checks := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Ports: statusErr != nil})
			for _, check := range checks {
				kind := statusOK
				if !check.Passed {
					kind = statusError
				}
				fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw status document")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, diagnostic bool) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath,
		LogLevel:   ctx.logLevel(),
		Diagnostic: diagnostic,
	}
}
