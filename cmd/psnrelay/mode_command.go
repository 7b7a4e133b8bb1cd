package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"psnrelay/internal/api"
)

func newModeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "mode [name]",
		Short: "Show or switch the active scene mode",
		Long: "Without an argument, prints the active scene mode and the configured presets.\n" +
			"With a preset name, switches every connected browser and the PSN output to it.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				var (
					resp api.ModeResponse
					err  error
				)
				if len(args) == 1 {
					resp, err = client.SetMode(cmd.Context(), args[0])
				} else {
					resp, err = client.Mode(cmd.Context())
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					fmt.Fprintf(out, "Switched to %s\n", displayMode(resp.Mode))
					return nil
				}
				rows := make([][]string, 0, len(resp.Modes))
				for _, mode := range resp.Modes {
					active := ""
					if mode == resp.Mode {
						active = "*"
					}
					rows = append(rows, []string{active, mode, displayMode(mode)})
				}
				fmt.Fprintln(out, renderTable([]string{"", "Preset", "Name"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the mode document as JSON")
	return cmd
}
