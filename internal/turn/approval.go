package turn

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/please-run/please/internal/patch"
)

// ApprovalDecision is the user's (or auto-gate's) verdict on one
// gated tool call.
type ApprovalDecision int

const (
	ApprovalDeny ApprovalDecision = iota
	ApprovalOnce
	ApprovalAlways
)

// gatedTools are the only tool names the approval gate applies to;
// every other tool auto-approves.
var gatedTools = map[string]bool{
	"run_command": true,
	"apply_patch": true,
}

// denyPatterns are destructive shell substrings that are blocked
// outright, even in interactive mode, without ever reaching the user.
var denyPatterns = []string{
	"rm -rf", "rm -fr",
	"mkfs", "dd if=", "dd of=",
	"shred",
	"> /dev/", ">/dev/",
	"sudo ", "su ", "doas ",
	"chmod 777", "chmod -R 777",
	"chown ", "chgrp ",
	"curl -d", "curl --data", "curl -X POST", "curl -X PUT",
	"wget --post",
	"nc ", "netcat ",
	"scp ", "rsync ",
	"history",
	".bash_history", ".zsh_history",
	".ssh/id_rsa", ".ssh/id_dsa", ".ssh/id_ecdsa", ".ssh/id_ed25519",
	".ssh/config",
	".aws/credentials", ".aws/config",
	".gnupg/",
	"/etc/shadow", "/etc/passwd",
	":(){ :|:& };:",
	"chmod +s",
	"mkfifo",
}

// denyPathPatterns are credential and secret file patterns that must
// never be touched: checked as suffixes of apply_patch's target path
// and as substrings anywhere in its patch text.
var denyPathPatterns = []string{
	".env",
	".env.local",
	".env.production",
	"credentials.json",
	"secrets.json",
	"secrets.yaml",
	"secrets.yml",
	".pem",
	".key",
}

// ApprovalManager tracks a session's "always allow" decisions and
// pre-filters destructive commands and credential paths before a tool
// call ever reaches the interactive prompt.
type ApprovalManager struct {
	mu        sync.Mutex
	allowlist map[string]bool
}

func NewApprovalManager() *ApprovalManager {
	return &ApprovalManager{allowlist: make(map[string]bool)}
}

// Gate decides whether call may run. A deny-pattern match auto-denies
// without consulting display; otherwise nonInteractive short-circuits
// every gated tool to deny. Beyond that, an allowlisted call
// auto-approves; everything else asks display and, on ApprovalAlways,
// remembers the decision for the rest of the session.
func (m *ApprovalManager) Gate(display Display, name string, arguments json.RawMessage, nonInteractive bool) (ok bool, denyReason string) {
	if !gatedTools[name] {
		return true, ""
	}

	if reason := denyReasonFor(name, arguments); reason != "" {
		return false, reason
	}

	if nonInteractive {
		return false, "non-interactive mode"
	}

	key := allowlistKey(name, arguments)
	m.mu.Lock()
	allowed := m.allowlist[key]
	m.mu.Unlock()
	if allowed {
		return true, ""
	}

	decision := confirm(display, name, arguments)
	switch decision {
	case ApprovalAlways:
		m.mu.Lock()
		m.allowlist[key] = true
		m.mu.Unlock()
		return true, ""
	case ApprovalOnce:
		return true, ""
	default:
		return false, "user denied"
	}
}

func confirm(display Display, name string, arguments json.RawMessage) ApprovalDecision {
	switch name {
	case "run_command":
		var args struct {
			Argv []string `json:"argv"`
		}
		_ = json.Unmarshal(arguments, &args)
		return display.ConfirmRunCommand(args.Argv)
	case "apply_patch":
		var args struct {
			Patch string `json:"patch"`
		}
		_ = json.Unmarshal(arguments, &args)
		preview, _ := patch.SummarizeForPreview(args.Patch)
		return display.ConfirmApplyPatch(preview)
	default:
		return ApprovalOnce
	}
}

// denyReasonFor returns a non-empty reason if arguments match a known
// destructive pattern for name, else "".
func denyReasonFor(name string, arguments json.RawMessage) string {
	switch name {
	case "run_command":
		var args struct {
			Argv []string `json:"argv"`
		}
		if err := json.Unmarshal(arguments, &args); err != nil {
			return ""
		}
		cmd := strings.ToLower(strings.Join(args.Argv, " "))
		for _, p := range denyPatterns {
			if strings.Contains(cmd, p) {
				return "denied: destructive command pattern"
			}
		}
	case "apply_patch":
		var args struct {
			Path  string `json:"path"`
			Patch string `json:"patch"`
		}
		if err := json.Unmarshal(arguments, &args); err != nil {
			return ""
		}
		lowerPath := strings.ToLower(args.Path)
		lowerPatch := strings.ToLower(args.Patch)
		for _, p := range denyPathPatterns {
			if strings.HasSuffix(lowerPath, p) || strings.Contains(lowerPatch, p) {
				return "denied: credential or secret file pattern"
			}
		}
	}
	return ""
}

// allowlistKey identifies what an ApprovalAlways decision remembers:
// the whole call for apply_patch, and the argv[0] program for
// run_command (so "Always allow" for one git invocation covers the
// next one with different arguments, matching the teacher's
// command-prefix allowlist).
func allowlistKey(name string, arguments json.RawMessage) string {
	if name == "run_command" {
		var args struct {
			Argv []string `json:"argv"`
		}
		if err := json.Unmarshal(arguments, &args); err == nil && len(args.Argv) > 0 {
			return "run_command:" + args.Argv[0]
		}
	}
	return name
}
