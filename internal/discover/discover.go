// Package discover locates a gpt-oss GGUF weights file on disk when
// the user hasn't pointed PLEASE_WEIGHTS_DIR at one directly: it
// walks the weights directory and the current directory looking for
// "*.gguf" files, and, when PLEASE_SALVAGE is set, also salvages
// model blobs out of an existing Ollama install.
package discover

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/please-run/please/internal/config"
)

type candidate struct {
	path      string
	sizeBytes int64
	mtime     time.Time
}

func isGptOssGGUF(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	return strings.Contains(name, "gpt-oss") && strings.HasSuffix(name, ".gguf")
}

func candidateRoots() []string {
	var roots []string
	roots = append(roots, config.WeightsDir())
	if cwd, err := os.Getwd(); err == nil {
		roots = append(roots, cwd)
	}
	return roots
}

// collectLocalGGUFCandidates walks root up to maxDepth directories
// deep, collecting every file that looks like a gpt-oss GGUF.
func collectLocalGGUFCandidates(root string, maxDepth int, out *[]candidate) {
	if maxDepth < 1 {
		return
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.IsDir() {
			collectLocalGGUFCandidates(path, maxDepth-1, out)
			continue
		}
		if isGptOssGGUF(path) && !isFollowupShard(entry.Name()) {
			*out = append(*out, candidate{path: path, sizeBytes: info.Size(), mtime: info.ModTime()})
		}
	}
}

// ollamaManifestLayer mirrors the subset of an Ollama manifest's
// layers array this package cares about.
type ollamaManifestLayer struct {
	MediaType string `json:"mediaType"`
	Digest    string `json:"digest"`
	Size      int64  `json:"size"`
}

type ollamaManifest struct {
	Layers []ollamaManifestLayer `json:"layers"`
}

// collectOllamaCandidates scans an existing Ollama install's
// gpt-oss manifests under home/.ollama and resolves each model layer
// to its content-addressed blob path.
func collectOllamaCandidates(home string, out *[]candidate) {
	manifestsRoot := filepath.Join(home, ".ollama", "models", "manifests", "registry.ollama.ai", "library", "gpt-oss")
	tags, err := os.ReadDir(manifestsRoot)
	if err != nil {
		return
	}
	for _, tag := range tags {
		manifestPath := filepath.Join(manifestsRoot, tag.Name())
		info, err := tag.Info()
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			continue
		}
		var manifest ollamaManifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			continue
		}
		for _, layer := range manifest.Layers {
			if layer.MediaType != "application/vnd.ollama.image.model" || layer.Size == 0 {
				continue
			}
			hex := strings.TrimPrefix(layer.Digest, "sha256:")
			blobPath := filepath.Join(home, ".ollama", "models", "blobs", "sha256-"+hex)
			sizeBytes, mtime := layer.Size, info.ModTime()
			if blobInfo, err := os.Stat(blobPath); err == nil {
				sizeBytes, mtime = blobInfo.Size(), blobInfo.ModTime()
			}
			*out = append(*out, candidate{path: blobPath, sizeBytes: sizeBytes, mtime: mtime})
		}
	}
}

// MultishardTargetName strips a "-<n>-of-<m>" shard infix from a
// weights filename, yielding the logical model name shared by all
// shards of a split GGUF. Names without a well-formed infix are
// returned unchanged.
func MultishardTargetName(shardName string) string {
	ofPos := strings.Index(shardName, "-of-")
	if ofPos < 0 {
		return shardName
	}

	start := ofPos
	for start > 0 && isASCIIDigit(shardName[start-1]) {
		start--
	}
	if start == ofPos || start == 0 || shardName[start-1] != '-' {
		return shardName
	}
	start--

	end := ofPos + len("-of-")
	for end < len(shardName) && isASCIIDigit(shardName[end]) {
		end++
	}
	if end == ofPos+len("-of-") {
		return shardName
	}

	return shardName[:start] + shardName[end:]
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// isFollowupShard reports whether name is a shard other than the
// first of a multishard set. The backend mmaps followup shards itself
// when handed the first one, so only shard 00001 is a load candidate.
func isFollowupShard(name string) bool {
	if MultishardTargetName(name) == name {
		return false
	}
	return !strings.Contains(name, "-00001-of-")
}

// maxWalkDepth bounds the recursive GGUF search under each candidate
// root.
const maxWalkDepth = 4

// ChooseBestModelPath returns the largest (ties broken by most
// recently modified) gpt-oss GGUF file found under the configured
// weights directory, the current directory, or, when PLEASE_SALVAGE
// is set, an existing Ollama install. It reports false if nothing was
// found.
func ChooseBestModelPath() (string, bool) {
	var candidates []candidate

	if config.Var("PLEASE_SALVAGE") != "" {
		if home, err := os.UserHomeDir(); err == nil {
			collectOllamaCandidates(home, &candidates)
		}
	}

	for _, root := range candidateRoots() {
		collectLocalGGUFCandidates(root, maxWalkDepth, &candidates)
	}

	if len(candidates) == 0 {
		return "", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sizeBytes != candidates[j].sizeBytes {
			return candidates[i].sizeBytes > candidates[j].sizeBytes
		}
		return candidates[i].mtime.After(candidates[j].mtime)
	})

	return candidates[0].path, true
}
