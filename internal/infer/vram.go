package infer

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// greedFactor is the fraction of reported free VRAM this process is
// willing to budget toward KV cache.
const greedFactor = 0.6

// PickCtxCap chooses a context length from
// [native, 64k, 32k, 8k] based on free VRAM and a rough model-size
// label (in billions of parameters, e.g. "120" or "20"), stopping at
// the first that should fit. Falls back to 8192 if free VRAM can't be
// determined or the model size isn't one of the known buckets.
func PickCtxCap(nativeCtx int, modelSizeLabel string) int {
	if nativeCtx <= 0 {
		nativeCtx = 8192
	}

	free, ok := VRAMFreeBytes()
	if !ok {
		slog.Warn("vram: free memory unknown, using default context cap")
		return min(8192, nativeCtx)
	}

	const gb = 1024 * 1024 * 1024
	budget := int64(greedFactor * float64(free))

	modelSize := leadingDigits(modelSizeLabel)

	var choices []struct {
		threshold int64
		ctx       int
	}
	switch modelSize {
	case 120:
		choices = []struct {
			threshold int64
			ctx       int
		}{
			{96 * gb, nativeCtx},
			{48 * gb, 65536},
			{24 * gb, 32768},
		}
	case 20:
		choices = []struct {
			threshold int64
			ctx       int
		}{
			{24 * gb, nativeCtx},
			{12 * gb, 65536},
			{6 * gb, 32768},
		}
	}

	for _, c := range choices {
		if budget >= c.threshold {
			return min(c.ctx, nativeCtx)
		}
	}

	slog.Warn("vram: no context bucket matched budget", "budget_bytes", budget, "model_size", modelSize)
	return min(8192, nativeCtx)
}

func leadingDigits(s string) int {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, _ := strconv.Atoi(s[:i])
	return n
}

// VRAMFreeBytes reports free VRAM bytes if it can be determined for
// any recognized GPU vendor, best-effort.
func VRAMFreeBytes() (int64, bool) {
	if v, ok := nvidiaFreeBytes(); ok {
		return v, true
	}
	if v, ok := amdFreeBytesSysfs(); ok {
		return v, true
	}
	return 0, false
}

func nvidiaFreeBytes() (int64, bool) {
	out, err := exec.Command("nvidia-smi", "--query-gpu=memory.free", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return 0, false
	}

	var bestMB int64
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		mb, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return 0, false
		}
		if mb > bestMB {
			bestMB = mb
		}
	}
	if bestMB == 0 {
		return 0, false
	}
	return bestMB * 1024 * 1024, true
}

func amdFreeBytesSysfs() (int64, bool) {
	entries, err := os.ReadDir("/sys/class/drm")
	if err != nil {
		return 0, false
	}

	var bestFree int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "card") || strings.Contains(name, "-") {
			continue
		}
		dev := filepath.Join("/sys/class/drm", name, "device")
		if _, err := os.Stat(dev); err != nil {
			continue
		}
		if vendor, ok := readUintFile(filepath.Join(dev, "vendor")); ok && vendor != 0x1002 {
			continue
		}

		total, totalOK := readFirstUintFile(dev, "mem_info_visible_vram_total", "mem_info_vis_vram_total")
		used, usedOK := readFirstUintFile(dev, "mem_info_visible_vram_used", "mem_info_vis_vram_used")
		if !totalOK || !usedOK {
			total, totalOK = readFirstUintFile(dev, "mem_info_vram_total")
			used, usedOK = readFirstUintFile(dev, "mem_info_vram_used")
			if !totalOK || !usedOK {
				continue
			}
		}

		free := total - used
		if free < 0 {
			free = 0
		}
		if free > bestFree {
			bestFree = free
		}
	}
	if bestFree == 0 {
		return 0, false
	}
	return bestFree, true
}

func readFirstUintFile(dir string, names ...string) (int64, bool) {
	for _, n := range names {
		if v, ok := readUintFile(filepath.Join(dir, n)); ok {
			return v, true
		}
	}
	return 0, false
}

func readUintFile(path string) (int64, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		// sysfs vendor IDs are hex-prefixed, e.g. "0x1002"
		v, err = strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(string(b), "0x")), 16, 64)
		if err != nil {
			return 0, false
		}
	}
	return v, true
}
