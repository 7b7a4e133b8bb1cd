// Package logs tails the daemon's run log for `psnrelay logs`.
//
// The log pointer in log_dir is a symlink to the current run's file, so a
// follower re-resolves it on every poll and starts over from the top of the
// new file when the daemon restarts. Memory stays bounded by the number of
// lines requested, not the file size.
package logs
