package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/please-run/please/internal/config"
	"github.com/please-run/please/internal/discover"
	"github.com/please-run/please/internal/hub"
	"github.com/please-run/please/internal/infer"
	"github.com/please-run/please/internal/transcript"
)

// newHubdCmd builds the daemon side of the binary. The probe spawns
// `please hubd serve` in the background when no hub is listening, but
// running it in the foreground is handy for watching the readout.
func newHubdCmd() *cobra.Command {
	hubd := &cobra.Command{
		Use:    "hubd",
		Short:  "the background inference daemon",
		Hidden: true,
	}
	hubd.AddCommand(newHubdServeCmd())
	return hubd
}

func newHubdServeCmd() *cobra.Command {
	var samplerFlag string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "load the model and serve probe sessions over the Unix socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), samplerFlag)
		},
	}
	cmd.Flags().StringVar(&samplerFlag, "sampler", "mirostat", "sampling policy: mirostat or nucleus")
	return cmd
}

func runServe(ctx context.Context, samplerFlag string) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel()})))

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	modelPath, ok := discover.ChooseBestModelPath()
	if !ok {
		return fmt.Errorf("hubd: no gpt-oss weights found under %s", config.WeightsDir())
	}
	slog.Info("hubd: selected model", "path", modelPath)

	ctxCap := config.CtxCap()
	if free, ok := infer.VRAMFreeBytes(); ok {
		ctxCap = infer.PickCtxCap(ctxCap, modelSizeLabel(modelPath))
		slog.Info("hubd: picked context cap from free VRAM", "ctx_cap", ctxCap, "free_bytes", free)
	}

	backend, err := infer.OpenBackend(modelPath, ctxCap)
	if err != nil {
		return fmt.Errorf("hubd: open backend: %w", err)
	}

	var store *transcript.Store
	if dbPath := config.TranscriptDB(); dbPath != "" {
		store, err = transcript.Open(dbPath)
		if err != nil {
			return fmt.Errorf("hubd: open transcript db: %w", err)
		}
		defer store.Close()
	}

	kind := infer.SamplerMirostat
	if strings.EqualFold(samplerFlag, "nucleus") {
		kind = infer.SamplerNucleus
	}

	h := hub.New(backend, ctxCap, kind, store)
	return hub.Run(ctx, h)
}

// modelSizeLabel extracts a leading parameter-count digit string
// (e.g. "20" from "gpt-oss-20b.gguf") from a weights filename, for
// infer.PickCtxCap's model-size bucket lookup. The original selects
// this from GGUF metadata (general.size_label) once the model is
// loaded; this is a filename-based stand-in used before the backend
// is open.
func modelSizeLabel(path string) string {
	name := strings.ToLower(filepath.Base(path))
	for i := 0; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			continue
		}
		j := i
		for j < len(name) && name[j] >= '0' && name[j] <= '9' {
			j++
		}
		if j < len(name) && name[j] == 'b' {
			return name[i:j]
		}
		i = j
	}
	return ""
}
