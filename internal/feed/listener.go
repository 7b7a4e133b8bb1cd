// Package feed receives tracker positions from motion capture systems as OSC
// over UDP and applies them to the roster through the relay service.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"psnrelay/internal/logging"
	"psnrelay/internal/osc"
	"psnrelay/internal/scene"
	"psnrelay/internal/tracker"
)

// ErrBadAddress is returned for OSC addresses that do not name a tracker.
var ErrBadAddress = errors.New("osc address does not name a tracker")

const (
	maxDatagram       = 65535
	dropWarnInterval  = 10 * time.Second
	defaultPrefix     = "/Tracker"
	positionArgsCount = 3
)

// Applier stores a scene-space position for a tracker.
type Applier interface {
	ApplyFeedUpdate(id int, p scene.Point) (tracker.State, error)
}

// Options configures the listener.
type Options struct {
	Bind          string
	AddressPrefix string
	ReusePort     bool
}

// Stats counts feed traffic.
type Stats struct {
	Packets  uint64 `json:"packets"`
	Accepted uint64 `json:"accepted"`
	Ignored  uint64 `json:"ignored"`
	Dropped  uint64 `json:"dropped"`
}

// Listener reads OSC datagrams from one UDP socket.
type Listener struct {
	conn    net.PacketConn
	applier Applier
	prefix  string
	logger  *slog.Logger

	packets  atomic.Uint64
	accepted atomic.Uint64
	ignored  atomic.Uint64
	dropped  atomic.Uint64
	lastWarn atomic.Int64
}

// Listen binds the feed socket. With ReusePort a second tool (for example a
// recorder) may share the port with the relay.
func Listen(ctx context.Context, opts Options, applier Applier, logger *slog.Logger) (*Listener, error) {
	if applier == nil {
		return nil, errors.New("feed listener requires an applier")
	}
	prefix := strings.TrimRight(opts.AddressPrefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	var lc net.ListenConfig
	if opts.ReusePort {
		lc.Control = reuseControl
	}
	conn, err := lc.ListenPacket(ctx, "udp", opts.Bind)
	if err != nil {
		return nil, fmt.Errorf("bind osc feed %s: %w", opts.Bind, err)
	}
	return &Listener{
		conn:    conn,
		applier: applier,
		prefix:  prefix,
		logger:  logging.NewComponentLogger(logger, "feed"),
	}, nil
}

// Probe binds and releases the feed address with the listener's socket
// options.
func Probe(ctx context.Context, opts Options) error {
	var lc net.ListenConfig
	if opts.ReusePort {
		lc.Control = reuseControl
	}
	conn, err := lc.ListenPacket(ctx, "udp", opts.Bind)
	if err != nil {
		return fmt.Errorf("bind osc feed %s: %w", opts.Bind, err)
	}
	return conn.Close()
}

func reuseControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Stats returns traffic counters.
func (l *Listener) Stats() Stats {
	return Stats{
		Packets:  l.packets.Load(),
		Accepted: l.accepted.Load(),
		Ignored:  l.ignored.Load(),
		Dropped:  l.dropped.Load(),
	}
}

// Serve reads datagrams until ctx is cancelled or the listener is closed.
// Datagrams are handled one at a time in arrival order.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = l.conn.Close() })
	defer stop()

	l.logger.Info("osc feed listening",
		logging.String("addr", l.conn.LocalAddr().String()),
		logging.String("prefix", l.prefix),
	)
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				l.logger.Info("osc feed stopped")
				return nil
			}
			l.logger.Warn("osc feed read failed", logging.Error(err))
			continue
		}
		l.handle(buf[:n], from)
	}
}

// Close releases the socket.
func (l *Listener) Close() error {
	err := l.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (l *Listener) handle(datagram []byte, from net.Addr) {
	l.packets.Add(1)
	msgs, err := osc.Parse(datagram)
	if err != nil {
		l.drop(from, "", err)
		return
	}
	for _, msg := range msgs {
		if !strings.HasPrefix(msg.Address, l.prefix) {
			l.ignored.Add(1)
			l.logger.Debug("osc message ignored", logging.String("address", msg.Address))
			continue
		}
		id, err := ParseTrackerID(msg.Address, l.prefix)
		if err != nil {
			l.drop(from, msg.Address, err)
			continue
		}
		values, err := msg.Float64s()
		if err == nil && len(values) != positionArgsCount {
			err = fmt.Errorf("%w: %s carries %d arguments, want %d", osc.ErrMalformed, msg.Address, len(values), positionArgsCount)
		}
		if err != nil {
			l.drop(from, msg.Address, err)
			continue
		}
		st, err := l.applier.ApplyFeedUpdate(id, scene.Point{X: values[0], Y: values[1], Z: values[2]})
		if err != nil {
			l.drop(from, msg.Address, err)
			continue
		}
		l.accepted.Add(1)
		l.logger.Debug("osc tracker update",
			logging.Int(logging.FieldTrackerID, st.ID),
			logging.Float64("x", st.X),
			logging.Float64("y", st.Y),
			logging.Float64("z", st.Z),
		)
	}
}

// drop counts a rejected message. Warnings are limited to one per interval so
// a misconfigured sender cannot flood the log.
func (l *Listener) drop(from net.Addr, address string, err error) {
	total := l.dropped.Add(1)
	attrs := []logging.Attr{
		logging.String(logging.FieldRemoteAddr, addrString(from)),
		logging.String("address", address),
		logging.Uint64("dropped_total", total),
		logging.Error(err),
	}
	now := time.Now().UnixNano()
	last := l.lastWarn.Load()
	if now-last >= int64(dropWarnInterval) && l.lastWarn.CompareAndSwap(last, now) {
		attrs = append(attrs,
			logging.String(logging.FieldErrorHint, "check the sender's OSC address pattern and argument types"),
			logging.String(logging.FieldImpact, "tracker positions from this sender are ignored"),
		)
		logging.WarnWithContext(l.logger, "osc message dropped", "osc_message_dropped", attrs...)
		return
	}
	l.logger.Debug("osc message dropped", logging.Args(attrs...)...)
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

// ParseTrackerID extracts the tracker id from an OSC address. Both
// "/Tracker/3" and "/Tracker3" name tracker 3 under the prefix "/Tracker".
func ParseTrackerID(address, prefix string) (int, error) {
	if !strings.HasPrefix(address, prefix) {
		return 0, fmt.Errorf("%w: %q is outside %q", ErrBadAddress, address, prefix)
	}
	segment := address[strings.LastIndexByte(address, '/')+1:]
	if base := prefix[strings.LastIndexByte(prefix, '/')+1:]; base != "" {
		segment = strings.TrimPrefix(segment, base)
	}
	if segment == "" {
		return 0, fmt.Errorf("%w: %q has no id segment", ErrBadAddress, address)
	}
	id, err := strconv.Atoi(segment)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q has non-numeric id %q", ErrBadAddress, address, segment)
	}
	return id, nil
}
