package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"psnrelay/internal/osc"
)

func newFeedCommand(ctx *commandContext) *cobra.Command {
	feedCmd := &cobra.Command{
		Use:   "feed",
		Short: "OSC feed utilities",
	}
	feedCmd.AddCommand(newFeedSendCommand(ctx))
	return feedCmd
}

func newFeedSendCommand(ctx *commandContext) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "send <id> <x> <y> [z]",
		Short: "Send one tracker position to the OSC feed",
		Long: "Sends <address_prefix>/<id> with x, y, z as OSC floats in scene coordinates\n" +
			"under the active preset, the same form a tracking system sends. z defaults to 0.",
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			id, err := parseTrackerArg(args[0])
			if err != nil {
				return err
			}
			coords := make([]float32, 3)
			for i, raw := range args[1:] {
				v, err := strconv.ParseFloat(strings.TrimSpace(raw), 32)
				if err != nil {
					return fmt.Errorf("invalid coordinate %q: %w", raw, err)
				}
				coords[i] = float32(v)
			}
			address := fmt.Sprintf("%s/%d", strings.TrimRight(cfg.Feed.AddressPrefix, "/"), id)
			packet, err := osc.AppendMessage(nil, address, coords[0], coords[1], coords[2])
			if err != nil {
				return err
			}

			dest := strings.TrimSpace(target)
			if dest == "" {
				dest = cfg.FeedTarget()
			}
			conn, err := net.Dial("udp", dest)
			if err != nil {
				return fmt.Errorf("dial feed %s: %w", dest, err)
			}
			defer conn.Close()
			if _, err := conn.Write(packet); err != nil {
				return fmt.Errorf("send to %s: %w", dest, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s (%g, %g, %g) to %s\n", address, coords[0], coords[1], coords[2], dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "to", "", "Feed address (defaults to feed.bind on loopback)")
	return cmd
}
