package hub

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/please-run/please/internal/config"
)

// SocketPath returns the Hub's Unix socket path, honoring PLEASE_SOCKET.
func SocketPath() string {
	return config.SocketPath()
}

// EnsureSocketDir creates the socket's parent directory if needed and
// restricts it to 0700.
func EnsureSocketDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("hub: create socket dir: %w", err)
	}
	return os.Chmod(dir, 0o700)
}

// CleanupStaleSocket removes a pre-existing socket file at path,
// refusing to touch anything that isn't actually a socket.
func CleanupStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("hub: stat socket path: %w", err)
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("hub: path exists but is not a socket: %s", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("hub: remove stale socket: %w", err)
	}
	return nil
}
