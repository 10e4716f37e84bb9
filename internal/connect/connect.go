// Package connect obtains a control connection to the Hub daemon,
// starting it in the background when no listener is present yet.
package connect

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/please-run/please/internal/hub"
)

// dialTimeout bounds a single connect attempt against a socket that
// may have no listener behind it.
const dialTimeout = 64 * time.Millisecond

// tryConnect attempts one connection to the Hub's socket, classifying
// the failure the way a caller deciding whether to spawn a hub cares
// about.
func tryConnect(path string) (net.Conn, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err == nil {
		return conn, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("connect: missing socket %s: %w", path, err)
	}
	if errors.Is(err, os.ErrPermission) {
		slog.Error("probe: something is off with the socket", "path", path, "err", err)
		return nil, fmt.Errorf("connect: permission denied on %s: %w", path, err)
	}
	return nil, fmt.Errorf("connect: no listener at %s: %w", path, err)
}

// startHubProcess spawns a detached hubd process from the same
// executable this probe was invoked as.
func startHubProcess() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("connect: locate own executable: %w", err)
	}
	cmd := exec.Command(exe, "hubd", "serve")
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("connect: start hub: %w", err)
	}
	return nil
}

// maxSpawnAttempts bounds how many times Obtain polls a freshly
// spawned hub before giving up.
const maxSpawnAttempts = 4

// spawnRetryInterval is the pause between spawn-connect retries.
const spawnRetryInterval = 128 * time.Millisecond

// Obtain returns a control connection to the Hub, starting it as a
// detached background process if no listener answers on the first
// attempt.
func Obtain() (net.Conn, error) {
	path := hub.SocketPath()

	if conn, err := tryConnect(path); err == nil {
		slog.Info("probe: connected to existing hub", "socket", path)
		return conn, nil
	}

	if err := startHubProcess(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxSpawnAttempts; attempt++ {
		time.Sleep(spawnRetryInterval)
		conn, err := tryConnect(path)
		if err == nil {
			slog.Info("probe: started hub", "socket", path)
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("connect: hub did not start listening on %s: %w", path, lastErr)
}

// Dialer adapts Obtain to the turn package's reconnect hook.
func Dialer() (net.Conn, error) {
	return Obtain()
}
