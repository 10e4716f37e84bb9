package discover

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestIsGptOssGGUFMatchesOnNameAndExtension(t *testing.T) {
	cases := map[string]bool{
		"gpt-oss-20b.gguf":      true,
		"GPT-OSS-120B.GGUF":     true, // the whole filename is lowercased before matching
		"gpt-oss.bin":           false,
		"llama-3.gguf":          false,
		"weights/gpt-oss.gguf":  true,
	}
	for path, want := range cases {
		if got := isGptOssGGUF(path); got != want {
			t.Errorf("isGptOssGGUF(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestMultishardTargetName(t *testing.T) {
	cases := map[string]string{
		"gpt-oss-120b-mxfp4-00001-of-00003.gguf": "gpt-oss-120b-mxfp4.gguf",
		"gpt-oss-120b-mxfp4-00002-of-00003.gguf": "gpt-oss-120b-mxfp4.gguf",
		"gpt-oss-20b-mxfp4.gguf":                 "gpt-oss-20b-mxfp4.gguf",
		"model-of-two":                           "model-of-two",
		"x-1-of-2":                               "x",
		"x--of-2":                                "x--of-2", // no digits before -of-
		"x-1-of-.gguf":                           "x-1-of-.gguf",
	}
	for in, want := range cases {
		if got := MultishardTargetName(in); got != want {
			t.Errorf("MultishardTargetName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFollowupShardsAreNotLoadCandidates(t *testing.T) {
	root := t.TempDir()
	t.Setenv("PLEASE_WEIGHTS_DIR", root)
	now := time.Now()
	writeFile(t, filepath.Join(root, "gpt-oss-120b-00001-of-00002.gguf"), 100, now)
	writeFile(t, filepath.Join(root, "gpt-oss-120b-00002-of-00002.gguf"), 500, now)

	var out []candidate
	collectLocalGGUFCandidates(root, maxWalkDepth, &out)
	if len(out) != 1 {
		t.Fatalf("expected only the first shard, got %+v", out)
	}
	if filepath.Base(out[0].path) != "gpt-oss-120b-00001-of-00002.gguf" {
		t.Fatalf("wrong shard picked: %q", out[0].path)
	}
}

func TestCollectLocalGGUFCandidatesFindsNestedFilesAndIgnoresOthers(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeFile(t, filepath.Join(root, "gpt-oss-20b.gguf"), 100, now)
	writeFile(t, filepath.Join(root, "nested", "gpt-oss-120b.gguf"), 200, now)
	writeFile(t, filepath.Join(root, "not-a-model.txt"), 50, now)

	var out []candidate
	collectLocalGGUFCandidates(root, maxWalkDepth, &out)

	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(out), out)
	}
}

func TestCollectLocalGGUFCandidatesRespectsMaxDepth(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeFile(t, filepath.Join(root, "a", "b", "c", "gpt-oss.gguf"), 10, now)

	var out []candidate
	collectLocalGGUFCandidates(root, 2, &out)
	if len(out) != 0 {
		t.Fatalf("expected depth limit to exclude the file, got %+v", out)
	}

	out = nil
	collectLocalGGUFCandidates(root, 4, &out)
	if len(out) != 1 {
		t.Fatalf("expected the file to be found within depth budget, got %+v", out)
	}
}

func TestChooseBestModelPathPrefersLargestThenNewest(t *testing.T) {
	root := t.TempDir()
	t.Setenv("PLEASE_WEIGHTS_DIR", root)
	t.Setenv("PLEASE_SALVAGE", "")

	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	small := filepath.Join(root, "gpt-oss-small.gguf")
	bigOld := filepath.Join(root, "gpt-oss-big-old.gguf")
	bigNew := filepath.Join(root, "sub", "gpt-oss-big-new.gguf")
	writeFile(t, small, 10, newer)
	writeFile(t, bigOld, 1000, older)
	writeFile(t, bigNew, 1000, newer)

	got, ok := ChooseBestModelPath()
	if !ok {
		t.Fatal("expected a candidate to be found")
	}
	if got != bigNew {
		t.Fatalf("got %q want %q (largest, tie broken by newest)", got, bigNew)
	}
}

func TestChooseBestModelPathReportsFalseWhenNothingFound(t *testing.T) {
	root := t.TempDir()
	t.Setenv("PLEASE_WEIGHTS_DIR", root)
	t.Setenv("PLEASE_SALVAGE", "")

	if _, ok := ChooseBestModelPath(); ok {
		t.Fatal("expected no candidate in an empty directory")
	}
}
