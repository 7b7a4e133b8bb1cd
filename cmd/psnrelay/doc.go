// Command psnrelay runs the PSN tracker relay and talks to a running instance
// over its HTTP control API.
//
// `psnrelay serve` runs the daemon in the foreground; `start`, `stop`, and
// `restart` manage a detached one. `status`, `trackers`, and `mode` query or
// change the live relay. `monitor` and `feed send` help when wiring the relay
// to a lighting desk or a tracking system.
package main
