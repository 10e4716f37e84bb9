package tools

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestRegistryDispatchesByName(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", Entry{
		Handler: WithArgs(func(a struct {
			Msg string `json:"msg"`
		}) any {
			return map[string]any{"echo": a.Msg}
		}),
	})

	out := r.Call("echo", json.RawMessage(`{"msg":"hi"}`))
	m, ok := out.(map[string]any)
	if !ok || m["echo"] != "hi" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestRegistryUnknownToolErrors(t *testing.T) {
	r := NewRegistry()
	out := r.Call("nope", json.RawMessage(`{}`))
	m := out.(map[string]any)
	if _, ok := m["error"]; !ok {
		t.Fatalf("expected error, got %+v", out)
	}
}

func TestRegistryMalformedArgsErrors(t *testing.T) {
	r := NewRegistry()
	r.Register("t", Entry{Handler: WithArgs(func(a struct {
		N int `json:"n"`
	}) any {
		return a.N
	})})
	out := r.Call("t", json.RawMessage(`not json`))
	m := out.(map[string]any)
	if _, ok := m["error"]; !ok {
		t.Fatalf("expected error for malformed args, got %+v", out)
	}
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	r := Default()
	want := []string{"list_files", "read_file", "run_command", "apply_patch"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestListFilesExcludesBuildDirs(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "main.go"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := ListFiles(ListFilesArgs{Path: ".", MaxDepth: 1})
	list, ok := out.([]string)
	if !ok {
		t.Fatalf("expected []string, got %T: %+v", out, out)
	}
	for _, e := range list {
		if e == "node_modules/" {
			t.Fatalf("expected node_modules to be excluded, got %v", list)
		}
	}
	found := false
	for _, e := range list {
		if e == "src/main.go" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected src/main.go in listing, got %v", list)
	}
}

func TestListFilesMissingPathErrors(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	out := ListFiles(ListFilesArgs{Path: "does-not-exist"})
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected error map, got %T", out)
	}
	if _, ok := m["error"]; !ok {
		t.Fatalf("expected error key, got %+v", m)
	}
}

func TestReadFileRespectsMaxBytes(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := ReadFile(ReadFileArgs{Path: "f.txt", MaxBytes: 4})
	s, ok := out.(string)
	if !ok || s != "0123" {
		t.Fatalf("got %+v", out)
	}
}

func TestReadFileMissingErrors(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	out := ReadFile(ReadFileArgs{Path: "missing.txt"})
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected error map, got %T", out)
	}
	if _, ok := m["error"]; !ok {
		t.Fatalf("expected error key, got %+v", m)
	}
}

func TestRunCommandReportsExitStatus(t *testing.T) {
	out := RunCommand(RunCommandArgs{Argv: []string{"sh", "-c", "echo hi; exit 3"}})
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", out)
	}
	if m["ok"] != true {
		t.Fatalf("expected ok=true even for nonzero exit, got %+v", m)
	}
	status := m["status"].(map[string]any)
	if status["code"] != 3 || status["success"] != false {
		t.Fatalf("unexpected status: %+v", status)
	}
	if m["stdout"] != "hi\n" {
		t.Fatalf("unexpected stdout: %+v", m["stdout"])
	}
}

func TestRunCommandRequiresNonEmptyArgv(t *testing.T) {
	out := RunCommand(RunCommandArgs{})
	m := out.(map[string]any)
	if _, ok := m["error"]; !ok {
		t.Fatalf("expected error, got %+v", out)
	}
}
