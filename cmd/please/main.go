// Command please is the terminal client ("probe"). With a prompt it
// runs one turn and exits; with a terminal on every fd and no prompt
// it drops into a REPL. The model itself lives in the hubd daemon,
// which the probe starts on demand and reaches over a Unix socket.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/please-run/please/internal/config"
	"github.com/please-run/please/internal/connect"
	"github.com/please-run/please/internal/history"
	"github.com/please-run/please/internal/message"
	"github.com/please-run/please/internal/repl"
	"github.com/please-run/please/internal/turn"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "please [prompt...]",
		Short: "a polite local LLM for your terminal",
		Example: "  $ git diff --cached | please summarize to a concise commit message\n" +
			"  $ please fix the failing test\n" +
			"  $ please",
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(args)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(newHubdCmd())
	return root
}

func runProbe(args []string) error {
	// The probe's stderr doubles as the answer surface, so default to
	// warnings only unless the user asked for more.
	level := slog.LevelWarn
	if config.Var("PLEASE_LOG_LEVEL") != "" {
		level = config.LogLevel()
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	stdinTTY := term.IsTerminal(int(os.Stdin.Fd()))
	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))
	stderrTTY := term.IsTerminal(int(os.Stderr.Fd()))

	var stdinContent string
	if !stdinTTY {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("probe: read stdin: %w", err)
		}
		stdinContent = string(data)
	}

	var redirect *string
	if !stdoutTTY {
		p := stdoutRedirectionPath()
		redirect = &p
	}

	hist := history.Make(stdinContent, redirect)
	display := turn.NewTerminalDisplay(config.Var("PLEASE_LOG_EVERYTHING") != "")

	conn, err := connect.Obtain()
	if err != nil {
		display.ShowOnboarding()
		return nil
	}
	defer conn.Close()

	nonInteractive := config.NonInteractive() || !(stdinTTY && stderrTTY)
	engine := turn.NewEngine(connect.Dialer, nonInteractive)

	promptText := strings.TrimSpace(strings.Join(args, " "))
	if stdinTTY && stdoutTTY && stderrTTY && promptText == "" {
		return interactForever(&conn, display, engine, hist)
	}

	hist = append(hist, message.User(promptText))
	_, err = engine.RunTurn(&conn, display, &hist)
	return err
}

// interactForever is the REPL: one turn per submitted line, sharing
// one growing history so the model keeps context across turns. An
// empty line, Ctrl-C, or Ctrl-D ends the session.
func interactForever(conn *net.Conn, display turn.Display, engine *turn.Engine, hist []message.Message) error {
	editor, err := repl.New(">> ")
	if err != nil {
		return fmt.Errorf("probe: init editor: %w", err)
	}
	editor.Placeholder = "ask me anything (empty line quits)"

	for {
		line, err := editor.Readline()
		if errors.Is(err, repl.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return nil
		}

		hist = append(hist, message.User(line))
		if _, err := engine.RunTurn(conn, display, &hist); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr)
	}
}

// stdoutRedirectionPath resolves where stdout points when it is not a
// terminal: a file path when redirected to a regular file, "" for
// pipes and anything unresolvable. The model uses the name only as a
// formatting hint.
func stdoutRedirectionPath() string {
	target, err := os.Readlink("/proc/self/fd/1")
	if err != nil {
		// /dev/fd works on the BSDs and macOS where procfs is absent
		target, err = os.Readlink("/dev/fd/1")
		if err != nil {
			return ""
		}
	}
	if !filepath.IsAbs(target) {
		return "" // "pipe:[123]", "socket:[456]", ...
	}
	return target
}
