package tools

import (
	"io"
	"os"

	"github.com/please-run/please/internal/sandbox"
)

const defaultMaxBytes = 512 * 1024

// ReadFileArgs are the read_file tool's arguments.
type ReadFileArgs struct {
	Path     string `json:"path"`
	MaxBytes int    `json:"max_bytes,omitempty"`
}

// ReadFile reads up to args.MaxBytes (default 524288) bytes of the
// sandboxed file and returns it as a (possibly lossily decoded) string.
func ReadFile(args ReadFileArgs) any {
	maxBytes := args.MaxBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}

	rel, err := sandbox.Resolve(args.Path)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	f, err := os.Open(rel)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)))
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return string(buf)
}
