// Package config loads, normalizes, and validates psnrelay configuration.
//
// Settings come from repository defaults, an optional TOML file, and finally
// the environment variables the relay has always honoured (WEB_SERVER_PORT,
// OSC_SERVER_PORT, PSN_DEFAULT_UDP_PORT, PSN_DEFAULT_UDP_MCAST_ADDRESS,
// NUM_TRACKERS). Structural checks run through validator tags; scene preset
// bounds are checked by the scene package so the daemon and a hot reload
// reject the same inputs.
package config
