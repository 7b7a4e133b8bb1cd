package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"psnrelay/internal/api"
)

func newTrackersCommand(ctx *commandContext) *cobra.Command {
	trackersCmd := &cobra.Command{
		Use:     "trackers",
		Aliases: []string{"tracker"},
		Short:   "Inspect and edit the tracker roster",
	}
	trackersCmd.AddCommand(newTrackersListCommand(ctx))
	trackersCmd.AddCommand(newTrackersAddCommand(ctx))
	trackersCmd.AddCommand(newTrackersRemoveCommand(ctx))
	return trackersCmd
}

func newTrackersListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List trackers in internal and scene coordinates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Trackers(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Mode: %s\n", displayMode(resp.Mode))
				if len(resp.Trackers) == 0 {
					fmt.Fprintln(out, "No trackers")
					return nil
				}
				fmt.Fprintln(out, renderTrackerTable(resp.Trackers))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the roster as JSON")
	return cmd
}

func newTrackersAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <id>",
		Short: "Add a tracker at the configured start position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTrackerArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				view, err := client.AddTracker(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added tracker %d at scene (%s, %s, %s)\n",
					view.ID, formatCoord(view.SceneX), formatCoord(view.SceneY), formatCoord(view.SceneZ))
				return nil
			})
		},
	}
}

func newTrackersRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a tracker",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTrackerArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				if err := client.RemoveTracker(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed tracker %d\n", id)
				return nil
			})
		},
	}
}

func parseTrackerArg(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 0 || id > 65535 {
		return 0, fmt.Errorf("invalid tracker id %q: want an integer in [0, 65535]", arg)
	}
	return id, nil
}

func renderTrackerTable(trackers []api.TrackerView) string {
	rows := make([][]string, 0, len(trackers))
	for _, tr := range trackers {
		rows = append(rows, []string{
			strconv.Itoa(tr.ID),
			formatCoord(tr.X),
			formatCoord(tr.Y),
			formatCoord(tr.Z),
			formatCoord(tr.SceneX),
			formatCoord(tr.SceneY),
			formatCoord(tr.SceneZ),
		})
	}
	return renderTable(
		[]string{"ID", "X", "Y", "Z", "Scene X", "Scene Y", "Scene Z"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
