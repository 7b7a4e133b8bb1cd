// Package broadcaster emits the tracker roster as PSN packets on a fixed tick.
package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"psnrelay/internal/logging"
	"psnrelay/internal/psn"
	"psnrelay/internal/scene"
	"psnrelay/internal/tracker"
)

const sendWarnInterval = 10 * time.Second

// Source supplies the roster and the preset used to place it in the scene.
type Source interface {
	All() []tracker.State
	Active() scene.Preset
}

// Sender delivers one datagram.
type Sender interface {
	Send(packet []byte) error
	Close() error
}

// Ticker abstracts time.Ticker so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// Options configures the tick loop.
type Options struct {
	Period        time.Duration
	InfoInterval  time.Duration
	SystemName    string
	MaxPacketSize int
	// Start is the origin of packet timestamps. Zero means the time Run starts.
	Start     time.Time
	NewTicker func(time.Duration) Ticker
}

// Stats counts broadcaster activity.
type Stats struct {
	Ticks       uint64 `json:"ticks"`
	Packets     uint64 `json:"packets"`
	InfoPackets uint64 `json:"info_packets"`
	SendErrors  uint64 `json:"send_errors"`
	Skipped     uint64 `json:"skipped_trackers"`
}

// Broadcaster owns the encoder and the sender for the lifetime of Run.
type Broadcaster struct {
	source  Source
	sender  Sender
	encoder *psn.Encoder
	opts    Options
	logger  *slog.Logger

	running atomic.Bool

	ticks       atomic.Uint64
	packets     atomic.Uint64
	infoPackets atomic.Uint64
	sendErrors  atomic.Uint64
	skipped     atomic.Uint64
	lastWarn    time.Time
}

// New validates options and builds a broadcaster. The sender is closed when
// Run returns.
func New(source Source, sender Sender, opts Options, logger *slog.Logger) (*Broadcaster, error) {
	if source == nil || sender == nil {
		return nil, errors.New("broadcaster requires a source and a sender")
	}
	if opts.Period <= 0 {
		return nil, fmt.Errorf("broadcaster period must be positive, got %s", opts.Period)
	}
	if opts.InfoInterval < 0 {
		return nil, fmt.Errorf("broadcaster info interval must not be negative, got %s", opts.InfoInterval)
	}
	if opts.NewTicker == nil {
		opts.NewTicker = newTimeTicker
	}
	encoder, err := psn.NewEncoder(opts.SystemName, opts.MaxPacketSize)
	if err != nil {
		return nil, fmt.Errorf("psn encoder: %w", err)
	}
	return &Broadcaster{
		source:  source,
		sender:  sender,
		encoder: encoder,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "broadcaster"),
	}, nil
}

// Stats returns activity counters.
func (b *Broadcaster) Stats() Stats {
	return Stats{
		Ticks:       b.ticks.Load(),
		Packets:     b.packets.Load(),
		InfoPackets: b.infoPackets.Load(),
		SendErrors:  b.sendErrors.Load(),
		Skipped:     b.skipped.Load(),
	}
}

// Run sends one data frame per tick until ctx is cancelled. A tick in
// progress finishes before Run returns, and the sender is closed after the
// loop exits. Missed ticks are dropped rather than replayed.
func (b *Broadcaster) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.New("broadcaster already running")
	}
	defer func() {
		if err := b.sender.Close(); err != nil {
			b.logger.Warn("psn socket close failed", logging.Error(err))
		}
	}()

	start := b.opts.Start
	if start.IsZero() {
		start = time.Now()
	}
	ticker := b.opts.NewTicker(b.opts.Period)
	defer ticker.Stop()

	b.logger.Info("psn broadcaster started",
		logging.Duration("period", b.opts.Period),
		logging.Duration("info_interval", b.opts.InfoInterval),
		logging.String("system_name", b.encoder.SystemName()),
	)

	var lastInfo time.Time
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("psn broadcaster stopped", logging.Uint64("ticks", b.ticks.Load()))
			return nil
		case now := <-ticker.C():
			trackers := b.snapshot()
			ts := elapsedMillis(start, now)
			b.sendData(trackers, ts, now)
			if b.opts.InfoInterval > 0 && (lastInfo.IsZero() || now.Sub(lastInfo) >= b.opts.InfoInterval) {
				b.sendInfo(trackers, ts, now)
				lastInfo = now
			}
		}
	}
}

// snapshot reads the roster and the active preset once and converts every
// tracker to scene meters.
func (b *Broadcaster) snapshot() []psn.Tracker {
	states := b.source.All()
	bounds := b.source.Active().Bounds
	out := make([]psn.Tracker, 0, len(states))
	for _, st := range states {
		if st.ID < 0 || st.ID > math.MaxUint16 {
			b.skipped.Add(1)
			continue
		}
		p := scene.ToScene(scene.Point{X: st.X, Y: st.Y, Z: st.Z}, bounds)
		out = append(out, psn.Tracker{
			ID:  uint16(st.ID),
			Pos: psn.Vec3{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)},
		})
	}
	return out
}

func (b *Broadcaster) sendData(trackers []psn.Tracker, ts uint64, now time.Time) {
	b.ticks.Add(1)
	packets, err := b.encoder.EncodeData(trackers, ts)
	if err != nil {
		b.sendFailed(now, "encode data frame", err)
		return
	}
	for _, packet := range packets {
		if err := b.sender.Send(packet); err != nil {
			b.sendFailed(now, "send data packet", err)
			continue
		}
		b.packets.Add(1)
	}
}

func (b *Broadcaster) sendInfo(trackers []psn.Tracker, ts uint64, now time.Time) {
	packets, err := b.encoder.EncodeInfo(trackers, ts)
	if err != nil {
		b.sendFailed(now, "encode info frame", err)
		return
	}
	for _, packet := range packets {
		if err := b.sender.Send(packet); err != nil {
			b.sendFailed(now, "send info packet", err)
			continue
		}
		b.infoPackets.Add(1)
	}
}

// sendFailed counts the error. The warning is emitted at most once per
// interval; a dead route would otherwise log at the tick rate.
func (b *Broadcaster) sendFailed(now time.Time, op string, err error) {
	total := b.sendErrors.Add(1)
	if !b.lastWarn.IsZero() && now.Sub(b.lastWarn) < sendWarnInterval {
		b.logger.Debug("psn send failed", logging.String("op", op), logging.Error(err))
		return
	}
	b.lastWarn = now
	logging.WarnWithContext(b.logger, "psn send failed", "psn_send_failed",
		logging.String("op", op),
		logging.Uint64("send_errors_total", total),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check psn.group, psn.interface and the multicast route"),
		logging.String(logging.FieldImpact, "downstream PSN receivers miss tracker positions"),
	)
}

func elapsedMillis(start, now time.Time) uint64 {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return uint64(d / time.Millisecond)
}
