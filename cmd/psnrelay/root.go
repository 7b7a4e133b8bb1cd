package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var urlFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag, &urlFlag)

	rootCmd := &cobra.Command{
		Use:           "psnrelay",
		Short:         "PSN tracker relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&urlFlag, "url", "", "Daemon base URL (defaults to server.bind)")

	rootCmd.AddCommand(newServeCommand(ctx))
	for _, cmd := range newDaemonCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newTrackersCommand(ctx))
	rootCmd.AddCommand(newModeCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newMonitorCommand(ctx))
	rootCmd.AddCommand(newFeedCommand(ctx))

	return rootCmd
}
