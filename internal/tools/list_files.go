package tools

import (
	"os"
	"path/filepath"

	"github.com/please-run/please/internal/sandbox"
)

// ListFilesArgs are the list_files tool's arguments.
type ListFilesArgs struct {
	Path     string `json:"path,omitempty"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

var excludedDirs = map[string]bool{
	"target": true, "node_modules": true, "dist": true,
	"build": true, "lib": true, "out": true,
}

// ListFiles lists entries under args.Path (default ".") up to
// args.MaxDepth levels deep (default 0: just the given directory),
// skipping common build-output directories.
func ListFiles(args ListFilesArgs) any {
	path := args.Path
	if path == "" {
		path = "."
	}
	root, err := sandbox.Resolve(path)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	info, err := os.Stat(root)
	if err != nil {
		return map[string]any{"error": "path does not exist: " + root}
	}

	base := root
	if !info.IsDir() {
		base = filepath.Dir(root)
	}

	var out []string
	if err := walk(root, base, 0, args.MaxDepth, &out); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}

func walk(cur, base string, depth, maxDepth int, out *[]string) error {
	if depth > maxDepth {
		return nil
	}
	entries, err := os.ReadDir(cur)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		path := filepath.Join(cur, entry.Name())
		isDir := entry.IsDir()
		if isDir && excludedDirs[entry.Name()] {
			continue
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if isDir && rel[len(rel)-1] != '/' {
			rel += "/"
		}
		*out = append(*out, rel)
		if isDir {
			if err := walk(path, base, depth+1, maxDepth, out); err != nil {
				return err
			}
		}
	}
	return nil
}
