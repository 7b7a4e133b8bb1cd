package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"psnrelay/internal/broadcaster"
	"psnrelay/internal/psn"
)

func newMonitorCommand(ctx *commandContext) *cobra.Command {
	var count int
	var duration time.Duration
	var showInfo bool

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Join the PSN group and print decoded frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			receiver, err := broadcaster.ListenMulticast(broadcaster.MulticastOptions{
				Group:     cfg.PSN.Group,
				Port:      cfg.PSN.Port,
				Interface: cfg.PSN.Interface,
			})
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, duration)
				defer cancel()
			}
			stop := context.AfterFunc(runCtx, func() { _ = receiver.Close() })
			defer func() {
				if stop() {
					_ = receiver.Close()
				}
			}()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Listening for PSN on %s:%d\n", cfg.PSN.Group, cfg.PSN.Port)
			return monitorPackets(receiver, out, count, showInfo)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many data packets (0 = unlimited)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Exit after this long (0 = until interrupted)")
	cmd.Flags().BoolVar(&showInfo, "info", false, "Also print info packets")
	return cmd
}

type packetReader interface {
	Read(buf []byte) (int, net.Addr, error)
}

func monitorPackets(r packetReader, out io.Writer, count int, showInfo bool) error {
	buf := make([]byte, 64<<10)
	seen := 0
	for count <= 0 || seen < count {
		n, from, err := r.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read psn: %w", err)
		}
		packet, err := psn.Decode(buf[:n])
		if err != nil {
			fmt.Fprintf(out, "%s: undecodable packet (%d bytes): %v\n", from, n, err)
			continue
		}
		if !packet.IsData() {
			if showInfo {
				fmt.Fprintln(out, formatInfoPacket(from, packet))
			}
			continue
		}
		fmt.Fprintln(out, formatDataPacket(from, packet))
		seen++
	}
	return nil
}

func formatDataPacket(from net.Addr, p psn.Packet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s frame %d t=%dms:", from, p.Header.FrameID, p.Header.Timestamp)
	if len(p.Trackers) == 0 {
		b.WriteString(" (no trackers)")
	}
	for _, tr := range p.Trackers {
		fmt.Fprintf(&b, " #%d(%.3f, %.3f, %.3f)", tr.ID, tr.Pos.X, tr.Pos.Y, tr.Pos.Z)
	}
	return b.String()
}

func formatInfoPacket(from net.Addr, p psn.Packet) string {
	names := make([]string, 0, len(p.Trackers))
	for _, tr := range p.Trackers {
		names = append(names, fmt.Sprintf("%d=%q", tr.ID, tr.Name))
	}
	return fmt.Sprintf("%s info system=%q trackers: %s", from, p.SystemName, strings.Join(names, " "))
}
