package patch

import (
	"os"
	"path/filepath"

	"github.com/please-run/please/internal/sandbox"
)

func writeTextCreatingDirs(path, content string, wantTrailingNewline bool) error {
	rel, err := sandbox.Resolve(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(rel); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(rel, []byte(setTrailingNewline(content, wantTrailingNewline)), 0o644)
}

// WriteVerbatim writes content to path, sandboxed, without touching
// its trailing-newline property. Used by overwrite mode.
func WriteVerbatim(path, content string) error {
	rel, err := sandbox.Resolve(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(rel); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(rel, []byte(content), 0o644)
}

func removeFileIfExists(path string) error {
	rel, err := sandbox.Resolve(path)
	if err != nil {
		return err
	}
	err = os.Remove(rel)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ExecuteOps applies a sequence of parsed ops, sandboxing every path
// and accumulating a per-op result without stopping on the first
// failure.
func ExecuteOps(ops []Op) map[string]any {
	results := make([]map[string]any, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case OpAdd:
			if err := writeTextCreatingDirs(op.Path, op.Content, !op.NoNewline); err != nil {
				results = append(results, map[string]any{"path": op.Path, "op": "add", "ok": false, "error": err.Error()})
			} else {
				results = append(results, map[string]any{"path": op.Path, "op": "add", "ok": true})
			}
		case OpDelete:
			if err := removeFileIfExists(op.Path); err != nil {
				results = append(results, map[string]any{"path": op.Path, "op": "delete", "ok": false, "error": err.Error()})
			} else {
				results = append(results, map[string]any{"path": op.Path, "op": "delete", "ok": true})
			}
		case OpUpdate:
			results = append(results, applyUpdateOp(op))
		}
	}
	return map[string]any{"ok": true, "mode": "patch", "results": results}
}

func applyUpdateOp(op Op) map[string]any {
	rel, err := sandbox.Resolve(op.Path)
	if err != nil {
		return map[string]any{"path": op.Path, "op": "update", "ok": false, "error": err.Error()}
	}

	text0 := ""
	if b, err := os.ReadFile(rel); err == nil {
		text0 = string(b)
	} else if !os.IsNotExist(err) {
		return map[string]any{"path": op.Path, "op": "update", "ok": false, "error": "read: " + err.Error()}
	}

	text, errs := ApplyAllHunks(text0, op.Hunks)
	if errs != nil {
		errList := make([]map[string]any, len(errs))
		for i, e := range errs {
			errList[i] = map[string]any{"hunk": e.Index, "error": e.Err}
		}
		return map[string]any{"path": op.Path, "op": "update", "ok": false, "errors": errList}
	}

	if err := writeTextCreatingDirs(op.Path, text, !op.NoNewline); err != nil {
		return map[string]any{"path": op.Path, "op": "update", "ok": false, "error": "write: " + err.Error()}
	}
	return map[string]any{"path": op.Path, "op": "update", "ok": true}
}
