package main

import (
	"github.com/spf13/cobra"

	"psnrelay/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var diagnostic bool
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				ConfigPath:  ctx.configPath,
				LogLevel:    ctx.logLevel(),
				Development: development,
				Diagnostic:  diagnostic,
			})
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Also write DEBUG JSON logs under log_dir/debug")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log records")
	return cmd
}
