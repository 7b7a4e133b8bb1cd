package config

const (
	defaultConfigPath     = "~/.config/psnrelay/config.toml"
	defaultStateDir       = "~/.local/state/psnrelay"
	defaultLogDir         = "~/.local/state/psnrelay/logs"
	defaultServerBind     = "0.0.0.0:8000"
	defaultWriteTimeoutMS = 2000
	defaultPingIntervalMS = 20000
	defaultClientQueue    = 64
	defaultMaxMessage     = 4096
	defaultFeedBind       = "0.0.0.0:9000"
	defaultAddressPrefix  = "/Tracker"
	defaultPSNGroup       = "236.10.10.10"
	defaultPSNPort        = 56565
	defaultPSNTTL         = 1
	defaultTickMS         = 33
	defaultInfoIntervalMS = 1000
	defaultSystemName     = "Server 1"
	defaultMaxPacketSize  = 1500
	defaultTrackerCount   = 3
	defaultStartX         = 0.5
	defaultStartY         = 0.5
	defaultStartZ         = 2
	defaultMode           = "scene_only"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// DefaultPresets returns the two stage layouts shipped with the relay.
func DefaultPresets() []Preset {
	return []Preset{
		{
			Name: "scene_only",
			XMin: -6.5, XMax: 6.5,
			YMin: 0, YMax: 6.3,
			ZMin: 0, ZMax: 4,
			BackgroundImage: "scene_only.png",
		},
		{
			Name: "full_arena",
			XMin: -6.5, XMax: 6.5,
			YMin: -9.7, YMax: 6.3,
			ZMin: 0, ZMax: 4,
			BackgroundImage: "scene_and_crowd.png",
		},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Server: Server{
			Bind:            defaultServerBind,
			WriteTimeoutMS:  defaultWriteTimeoutMS,
			PingIntervalMS:  defaultPingIntervalMS,
			ClientQueue:     defaultClientQueue,
			MaxMessageBytes: defaultMaxMessage,
		},
		Feed: Feed{
			Enabled:       true,
			Bind:          defaultFeedBind,
			AddressPrefix: defaultAddressPrefix,
			ReusePort:     true,
		},
		PSN: PSN{
			Group:          defaultPSNGroup,
			Port:           defaultPSNPort,
			TTL:            defaultPSNTTL,
			Loopback:       true,
			TickMS:         defaultTickMS,
			InfoIntervalMS: defaultInfoIntervalMS,
			SystemName:     defaultSystemName,
			MaxPacketSize:  defaultMaxPacketSize,
		},
		Trackers: Trackers{
			InitialCount: defaultTrackerCount,
			StartX:       defaultStartX,
			StartY:       defaultStartY,
			StartZ:       defaultStartZ,
		},
		Scene: Scene{
			DefaultMode: defaultMode,
			Presets:     DefaultPresets(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
