// Package history composes the initial chat history a probe session
// sends on its first turn: the system preamble, tool guidance, and
// any piped stdin content or output-redirection hint.
package history

import (
	"strings"
	"time"

	"github.com/please-run/please/internal/config"
	"github.com/please-run/please/internal/message"
	"github.com/please-run/please/internal/prompt"
)

// knowledgeCutoff is substituted into the system preamble; it names
// the model's training cutoff, not today's date.
const knowledgeCutoff = "2024-06"

// reasoningLevel maps PLEASE_TRY's first letter to a reasoning effort
// name, defaulting to "medium" when unset or unrecognized.
func reasoningLevel() string {
	v := strings.ToLower(strings.TrimSpace(config.Var("PLEASE_TRY")))
	switch {
	case strings.HasPrefix(v, "h"):
		return "high"
	case strings.HasPrefix(v, "m"):
		return "medium"
	case strings.HasPrefix(v, "l"), strings.HasPrefix(v, "e"):
		return "low"
	default:
		return "medium"
	}
}

// Make composes a session's starting history: the system preamble,
// the tool-guidance developer message, and — when present — the piped
// stdin content and an output-redirection hint. stdoutRedirectPath is
// nil when stdout is a terminal; a non-nil pointer to "" means stdout
// is redirected to an unnamed destination (e.g. a pipe).
func Make(stdinContent string, stdoutRedirectPath *string) []message.Message {
	today := time.Now().Format("2006-01-02")
	history := []message.Message{
		message.System(prompt.RenderSystemPreamble(knowledgeCutoff, today, reasoningLevel())),
	}

	if guidance := strings.TrimSpace(prompt.ToolGuidance); guidance != "" {
		history = append(history, message.Developer(guidance))
	}

	if s := strings.TrimSpace(stdinContent); s != "" {
		history = append(history,
			message.Developer("The next message is the full stdin content."),
			message.Developer(s),
		)
	}

	if stdoutRedirectPath != nil {
		if *stdoutRedirectPath == "" {
			history = append(history, message.Developer(
				"Your final answer output is redirected to a file, so do not fence anything and produce the content directly without any extra prose."))
		} else {
			history = append(history, message.Developer(
				"Your final answer output is redirected to file named `"+*stdoutRedirectPath+"`, so do not fence anything and produce the content directly without any extra prose."))
		}
	}

	return history
}
