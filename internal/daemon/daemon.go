package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"psnrelay/internal/api"
	"psnrelay/internal/broadcaster"
	"psnrelay/internal/config"
	"psnrelay/internal/feed"
	"psnrelay/internal/hub"
	"psnrelay/internal/logging"
	"psnrelay/internal/relay"
	"psnrelay/internal/scene"
	"psnrelay/internal/tracker"
)

// ErrAlreadyRunning is returned when the instance lock is held elsewhere.
var ErrAlreadyRunning = errors.New("another psnrelay instance is already running")

// Option customizes a daemon.
type Option func(*Daemon)

// WithPSNSender replaces the multicast socket, mainly for tests.
func WithPSNSender(sender broadcaster.Sender) Option {
	return func(d *Daemon) { d.sender = sender }
}

// WithConfigPath records the file the config was loaded from. The watcher
// reloads presets from it when scene.watch_config is set.
func WithConfigPath(path string) Option {
	return func(d *Daemon) { d.configPath = path }
}

// Daemon owns every long-lived component. A daemon runs at most once.
type Daemon struct {
	cfg        *config.Config
	configPath string
	base       *slog.Logger
	logger     *slog.Logger
	created    time.Time

	store *tracker.Store
	hub   *hub.Hub
	relay *relay.Service

	lockPath string
	lock     *flock.Flock

	sender      broadcaster.Sender
	destination string
	api         *apiServer
	feed        *feed.Listener
	broadcaster *broadcaster.Broadcaster

	running atomic.Bool
	used    atomic.Bool
	mu      sync.Mutex
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// New constructs a daemon with initialized dependencies. Nothing is bound
// until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	sceneCfg, err := scene.NewConfig(cfg.ScenePresets(), cfg.Scene.DefaultMode)
	if err != nil {
		return nil, fmt.Errorf("scene config: %w", err)
	}
	start := scene.Point{X: cfg.Trackers.StartX, Y: cfg.Trackers.StartY, Z: cfg.Trackers.StartZ}
	store := tracker.NewStore(tracker.Roster(cfg.Trackers.InitialCount, start.X, start.Y, start.Z)...)

	d := &Daemon{
		cfg:      cfg,
		base:     logger,
		created:  time.Now(),
		store:    store,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		done:     make(chan struct{}),
	}
	d.logger = logging.NewComponentLogger(d.loggerFor("daemon"), "daemon")
	d.hub = hub.New(store, d.loggerFor("hub"))
	d.relay = relay.New(store, sceneCfg, d.hub, start, d.loggerFor("relay"))
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, d.loggerFor("api-server"))
	return d, nil
}

// loggerFor returns the base logger with any level override configured for
// component. Packages attach their own component attribute.
func (d *Daemon) loggerFor(component string) *slog.Logger {
	return logging.LevelFor(d.base, component, d.cfg.Logging.ComponentLevels)
}

// Relay exposes the relay service.
func (d *Daemon) Relay() *relay.Service { return d.relay }

// Start acquires the instance lock, binds every socket, and launches the
// component goroutines. Bind failures are returned and nothing keeps running.
func (d *Daemon) Start(ctx context.Context) error {
	if !d.used.CompareAndSwap(false, true) {
		return errors.New("daemon already started")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		close(d.done)
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		close(d.done)
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.bind(runCtx); err != nil {
		cancel()
		d.releaseSockets()
		_ = d.lock.Unlock()
		close(d.done)
		return err
	}

	group, gctx := errgroup.WithContext(runCtx)
	group.Go(d.api.serve)
	group.Go(func() error {
		<-gctx.Done()
		d.hub.CloseAll(hub.CloseGoingAway)
		d.api.shutdown()
		return nil
	})
	group.Go(func() error { return d.broadcaster.Run(gctx) })
	if d.feed != nil {
		group.Go(func() error { return d.feed.Serve(gctx) })
	}
	if d.cfg.Scene.WatchConfig {
		if w, err := newPresetWatcher(d.configPath, d.relay, d.loggerFor("watcher")); err != nil {
			logging.WarnWithContext(d.logger, "preset watcher unavailable", "preset_watch_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the config file exists and inotify limits"),
				logging.String(logging.FieldImpact, "preset edits need a restart to take effect"),
			)
		} else {
			group.Go(func() error { return w.run(gctx) })
		}
	}

	d.mu.Lock()
	d.started = time.Now()
	d.cancel = cancel
	d.mu.Unlock()
	d.running.Store(true)

	go func() {
		err := group.Wait()
		cancel()
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		d.running.Store(false)
		d.logger.Info("psnrelay daemon stopped")
		close(d.done)
	}()

	d.logger.Info("psnrelay daemon started",
		logging.String("lock", d.lockPath),
		logging.String("http", d.api.addr()),
		logging.String("psn", d.destination),
		logging.String(logging.FieldMode, d.relay.Mode()),
		logging.Int("trackers", d.relay.Len()),
	)
	return nil
}

func (d *Daemon) bind(ctx context.Context) error {
	if err := d.api.listen(); err != nil {
		return err
	}
	if d.cfg.Feed.Enabled {
		l, err := feed.Listen(ctx, feed.Options{
			Bind:          d.cfg.Feed.Bind,
			AddressPrefix: d.cfg.Feed.AddressPrefix,
			ReusePort:     d.cfg.Feed.ReusePort,
		}, d.relay, d.loggerFor("feed"))
		if err != nil {
			return err
		}
		d.feed = l
	}
	if d.sender == nil {
		s, err := broadcaster.DialMulticast(broadcaster.MulticastOptions{
			Group:     d.cfg.PSN.Group,
			Port:      d.cfg.PSN.Port,
			Interface: d.cfg.PSN.Interface,
			TTL:       d.cfg.PSN.TTL,
			Loopback:  d.cfg.PSN.Loopback,
		})
		if err != nil {
			return err
		}
		d.sender = s
	}
	if named, ok := d.sender.(interface{ Destination() string }); ok {
		d.destination = named.Destination()
	}
	b, err := broadcaster.New(d.relay, d.sender, broadcaster.Options{
		Period:        time.Duration(d.cfg.PSN.TickMS) * time.Millisecond,
		InfoInterval:  time.Duration(d.cfg.PSN.InfoIntervalMS) * time.Millisecond,
		SystemName:    d.cfg.PSN.SystemName,
		MaxPacketSize: d.cfg.PSN.MaxPacketSize,
		Start:         d.created,
	}, d.loggerFor("broadcaster"))
	if err != nil {
		return err
	}
	d.broadcaster = b
	return nil
}

func (d *Daemon) releaseSockets() {
	d.api.close()
	if d.feed != nil {
		_ = d.feed.Close()
	}
	if d.sender != nil {
		_ = d.sender.Close()
	}
}

// Done is closed once every component has stopped.
func (d *Daemon) Done() <-chan struct{} { return d.done }

// Err returns the first component failure, if any, after Done is closed.
func (d *Daemon) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Stop closes client sessions with "going away", stops the feed and the
// broadcaster after their current unit of work, shuts down the HTTP server,
// and releases the lock.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-d.done
	return d.Err()
}

// Addr returns the bound HTTP address, or "" before Start.
func (d *Daemon) Addr() string { return d.api.addr() }

// FeedAddr returns the bound OSC address, or "" when the feed is disabled.
func (d *Daemon) FeedAddr() string {
	if d.feed == nil {
		return ""
	}
	return d.feed.Addr().String()
}

// Status returns the current daemon status.
func (d *Daemon) Status() api.StatusResponse {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	hubStats := d.hub.Stats()
	status := api.StatusResponse{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    api.FormatTime(started),
		Mode:         d.relay.Mode(),
		Modes:        d.relay.Modes(),
		Trackers:     d.relay.Len(),
		LockFilePath: d.lockPath,
		ConfigPath:   d.configPath,
		Hub: api.HubStats{
			Sessions:   hubStats.Sessions,
			Broadcasts: hubStats.Broadcasts,
			Frames:     hubStats.Frames,
			Evicted:    hubStats.Evicted,
		},
	}
	if !started.IsZero() {
		status.UptimeSeconds = time.Since(started).Seconds()
	}
	if d.broadcaster != nil {
		s := d.broadcaster.Stats()
		status.Broadcaster = &api.BroadcasterStats{
			Destination: d.destination,
			Ticks:       s.Ticks,
			Packets:     s.Packets,
			InfoPackets: s.InfoPackets,
			SendErrors:  s.SendErrors,
		}
	}
	if d.feed != nil {
		s := d.feed.Stats()
		status.Feed = &api.FeedStats{
			Address:  d.feed.Addr().String(),
			Packets:  s.Packets,
			Accepted: s.Accepted,
			Ignored:  s.Ignored,
			Dropped:  s.Dropped,
		}
	}
	return status
}
