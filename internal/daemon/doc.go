// Package daemon coordinates the long-running psnrelay process.
//
// It wires configuration, the tracker store, the client hub, and the relay
// service into a single lifecycle with flock-based locking to prevent multiple
// instances. A started daemon runs the HTTP/WebSocket server, the OSC feed
// listener, the PSN broadcaster, and optionally a config watcher that hot
// reloads scene presets.
//
// Keep orchestration logic here: protocol handling lives in the session, feed,
// and broadcaster packages while the daemon focuses on startup, shutdown, and
// the HTTP routes that expose the relay service.
package daemon
