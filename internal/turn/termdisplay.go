package turn

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// ansi color codes used for the terminal renderer, matching the hand
// rolled escape sequences the rest of this codebase's CLI uses rather
// than pulling in a color library.
const (
	ansiReset      = "\x1b[0m"
	ansiDarkCyan   = "\x1b[36m"
	ansiDarkYellow = "\x1b[33m"
)

// TerminalDisplay renders a turn to the user's terminal: the final
// answer goes to stdout so it stays pipeable, everything else
// (reasoning, logs, tool calls, prompts) goes to stderr.
type TerminalDisplay struct {
	colorful      bool
	canPromptUser bool
	showReadout   bool

	mu          sync.Mutex
	spinnerStop chan struct{}
	spinnerDone chan struct{}
	inThinking  bool
}

// NewTerminalDisplay detects terminal capabilities from stdin/stdout/
// stderr and returns a Display that renders accordingly.
// showReadout enables printing Log frames (the hub's technical
// readout), which is only useful when the hub runs in the foreground
// or PLEASE_LOG_EVERYTHING is set.
func NewTerminalDisplay(showReadout bool) *TerminalDisplay {
	return &TerminalDisplay{
		colorful:      term.IsTerminal(int(os.Stderr.Fd())),
		canPromptUser: term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd())),
		showReadout:   showReadout,
	}
}

var spinnerFrames = []rune{'|', '/', '-', '\\'}

func (d *TerminalDisplay) StartSpinning() {
	if !d.colorful {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spinnerStop != nil {
		return
	}
	d.spinnerStop = make(chan struct{})
	d.spinnerDone = make(chan struct{})
	stop, done := d.spinnerStop, d.spinnerDone
	go func() {
		defer close(done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		i := 0
		for {
			select {
			case <-stop:
				fmt.Fprint(os.Stderr, "\r\x1b[K")
				return
			case <-ticker.C:
				fmt.Fprintf(os.Stderr, "\r%c", spinnerFrames[i%len(spinnerFrames)])
				i++
			}
		}
	}()
}

func (d *TerminalDisplay) StopSpinning() {
	d.mu.Lock()
	stop, done := d.spinnerStop, d.spinnerDone
	d.spinnerStop, d.spinnerDone = nil, nil
	d.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (d *TerminalDisplay) ShowLog(line string) {
	if !d.showReadout {
		return
	}
	line = strings.TrimRight(line, "\n")
	if d.colorful {
		fmt.Fprintf(os.Stderr, "%s| %s%s\n", ansiDarkCyan, line, ansiReset)
	} else {
		fmt.Fprintf(os.Stderr, "| %s\n", line)
	}
}

func (d *TerminalDisplay) StartThinking() {
	d.mu.Lock()
	d.inThinking = true
	d.mu.Unlock()
}

func (d *TerminalDisplay) ShowReasoningDelta(content string) {
	if !d.colorful {
		return
	}
	fmt.Fprint(os.Stderr, ansiDarkYellow, content, ansiReset)
}

func (d *TerminalDisplay) EndThinking() {
	d.mu.Lock()
	wasThinking := d.inThinking
	d.inThinking = false
	d.mu.Unlock()
	if d.colorful && wasThinking {
		fmt.Fprint(os.Stderr, "\n")
	}
}

func (d *TerminalDisplay) ShowAnswerDelta(content string) {
	fmt.Fprint(os.Stdout, content)
}

func (d *TerminalDisplay) EndAnswer() {
	fmt.Fprintln(os.Stdout)
}

func (d *TerminalDisplay) ShowToolCall(name string, arguments string) {
	if d.colorful {
		fmt.Fprintf(os.Stderr, "%s%s%s%s\n\n", ansiDarkCyan, name, arguments, ansiReset)
	} else {
		fmt.Fprintf(os.Stderr, "call: %s %s\n", name, arguments)
	}
}

func (d *TerminalDisplay) ShowToolOutput(name string, result any) {
	fmt.Fprintf(os.Stderr, "%s output:\n%v\n\n", name, result)
}

func (d *TerminalDisplay) ConfirmRunCommand(argv []string) ApprovalDecision {
	if !d.canPromptUser {
		fmt.Fprintln(os.Stderr, "rejecting run_command in non-interactive mode")
		return ApprovalDeny
	}
	fmt.Fprintf(os.Stderr, "run: %s\nProceed once / always / no? [y/a/N] ", strings.Join(argv, " "))
	return d.readDecision()
}

func (d *TerminalDisplay) ConfirmApplyPatch(preview string) ApprovalDecision {
	if !d.canPromptUser {
		fmt.Fprintln(os.Stderr, "rejecting apply_patch in non-interactive mode")
		return ApprovalDeny
	}
	if d.colorful {
		fmt.Fprintf(os.Stderr, "\n%s%s%s\nProceed once / always / no? [y/a/N] ", ansiDarkYellow, preview, ansiReset)
	} else {
		fmt.Fprintf(os.Stderr, "\n%s\nProceed once / always / no? [y/a/N] ", preview)
	}
	return d.readDecision()
}

func (d *TerminalDisplay) ShowOnboarding() {
	fmt.Fprint(os.Stderr, ""+
		"please: no model is available yet.\n\n"+
		"  1. put gpt-oss GGUF weights under ~/.please/weights\n"+
		"     (or point PLEASE_WEIGHTS_DIR somewhere that has them)\n"+
		"  2. run `please` again; the hub starts itself\n\n")
}

// readDecision reads one line from stdin and maps its first
// character to an ApprovalDecision: 'y' once, 'a' always, anything
// else denies.
func (d *TerminalDisplay) readDecision() ApprovalDecision {
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	if len(line) == 0 {
		return ApprovalDeny
	}
	switch line[0] {
	case 'a':
		return ApprovalAlways
	case 'y':
		return ApprovalOnce
	default:
		return ApprovalDeny
	}
}
