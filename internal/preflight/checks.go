package preflight

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"psnrelay/internal/broadcaster"
	"psnrelay/internal/config"
	"psnrelay/internal/feed"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFile verifies that a regular file exists and is readable.
func CheckFile(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckBackgroundImage verifies a preset's image resolves inside staticDir.
func CheckBackgroundImage(preset, staticDir, image string) Result {
	name := fmt.Sprintf("Background (%s)", preset)
	if !filepath.IsLocal(image) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: must be a relative path inside static_dir)", image)}
	}
	return CheckFile(name, filepath.Join(staticDir, image))
}

// CheckTCPBind verifies the address can be listened on.
func CheckTCPBind(name, bind string) Result {
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bind, err)}
	}
	_ = ln.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", bind)}
}

// CheckUDPBind verifies the feed address can be bound with the same socket
// options the listener uses.
func CheckUDPBind(ctx context.Context, name, bind string, reusePort bool) Result {
	if err := feed.Probe(ctx, feed.Options{Bind: bind, ReusePort: reusePort}); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bind, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", bind)}
}

// CheckMulticast opens the PSN output socket without sending anything.
func CheckMulticast(psn config.PSN) Result {
	const name = "PSN output"
	sender, err := broadcaster.DialMulticast(broadcaster.MulticastOptions{
		Group:     psn.Group,
		Port:      psn.Port,
		Interface: psn.Interface,
		TTL:       psn.TTL,
		Loopback:  psn.Loopback,
	})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	dest := sender.Destination()
	_ = sender.Close()
	iface := psn.Interface
	if iface == "" {
		iface = "default route"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s via %s", dest, iface)}
}
