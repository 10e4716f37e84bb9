// Package repl implements the probe's interactive line editor: raw
// mode input with emacs-style editing keys and a persistent input
// history. Rendering redraws the whole line on every edit, which keeps
// the cursor bookkeeping simple at the cost of a little terminal
// traffic; prompts here are short and lines are human-typed, so the
// trade is fine.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// ErrInterrupt is returned when the user presses Ctrl-C at the
// prompt.
var ErrInterrupt = errors.New("interrupt")

// Instance reads edited lines from the controlling terminal.
type Instance struct {
	Prompt      string
	Placeholder string
	History     *History

	reader *bufio.Reader
}

// New returns an editor reading from stdin with history loaded from
// disk.
func New(prompt string) (*Instance, error) {
	history, err := NewHistory()
	if err != nil {
		return nil, err
	}
	return &Instance{
		Prompt:  prompt,
		History: history,
		reader:  bufio.NewReader(os.Stdin),
	}, nil
}

// editState is one Readline call's mutable state.
type editState struct {
	line  []rune
	pos   int
	saved []rune // in-progress line stashed during history recall
}

// Readline reads one line, blocking until Enter, Ctrl-C
// (ErrInterrupt) or Ctrl-D on an empty line (io.EOF).
func (i *Instance) Readline() (string, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return "", err
	}
	defer term.Restore(fd, oldState)

	st := &editState{}
	i.refresh(st)

	for {
		r, _, err := i.reader.ReadRune()
		if err != nil {
			return "", io.EOF
		}

		switch r {
		case charEsc:
			if err := i.handleEscape(st); err != nil {
				return "", err
			}

		case charInterrupt:
			fmt.Print(cursorBOL + clearToEOL)
			fmt.Print("\r\n")
			return "", ErrInterrupt

		case charCtrlD:
			if len(st.line) == 0 {
				fmt.Print("\r\n")
				return "", io.EOF
			}
			st.deleteAt()
			i.refresh(st)

		case charEnter, charCtrlJ:
			fmt.Print("\r\n")
			out := string(st.line)
			if strings.TrimSpace(out) != "" {
				i.History.Add(out)
			}
			return out, nil

		case charBackspace, charCtrlH:
			if st.pos > 0 {
				st.pos--
				st.deleteAt()
				i.refresh(st)
			}

		case charCtrlA:
			st.pos = 0
			i.refresh(st)
		case charCtrlE:
			st.pos = len(st.line)
			i.refresh(st)
		case charCtrlB:
			st.moveLeft()
			i.refresh(st)
		case charCtrlF:
			st.moveRight()
			i.refresh(st)
		case charCtrlK:
			st.line = st.line[:st.pos]
			i.refresh(st)
		case charCtrlU:
			st.line = append([]rune{}, st.line[st.pos:]...)
			st.pos = 0
			i.refresh(st)
		case charCtrlW:
			st.deleteWord()
			i.refresh(st)
		case charCtrlL:
			fmt.Print(clearScreen)
			i.refresh(st)
		case charCtrlP:
			i.historyPrev(st)
		case charCtrlN:
			i.historyNext(st)

		case charTab:
			// tab inserts plain spaces; there is no completion
			for n := 0; n < 4; n++ {
				st.insert(' ')
			}
			i.refresh(st)

		default:
			if r >= charSpace {
				st.insert(r)
				i.refresh(st)
			}
		}
	}
}

// handleEscape consumes the remainder of an ESC sequence. Plain
// ESC-b/ESC-f word motions and CSI cursor keys are handled; unknown
// sequences are swallowed so stray bytes never land in the line.
func (i *Instance) handleEscape(st *editState) error {
	r, _, err := i.reader.ReadRune()
	if err != nil {
		return io.EOF
	}

	switch r {
	case 'b':
		st.moveLeftWord()
		i.refresh(st)
		return nil
	case 'f':
		st.moveRightWord()
		i.refresh(st)
		return nil
	case charBackspace, charCtrlH:
		st.deleteWord()
		i.refresh(st)
		return nil
	case '[', 'O':
		// CSI / SS3, fall through to the final byte below
	default:
		return nil
	}

	final, _, err := i.reader.ReadRune()
	if err != nil {
		return io.EOF
	}

	switch final {
	case keyUp:
		i.historyPrev(st)
	case keyDown:
		i.historyNext(st)
	case keyLeft:
		st.moveLeft()
		i.refresh(st)
	case keyRight:
		st.moveRight()
		i.refresh(st)
	case keyHome:
		st.pos = 0
		i.refresh(st)
	case keyEnd:
		st.pos = len(st.line)
		i.refresh(st)
	case '1', '7':
		i.consumeTilde()
		st.pos = 0
		i.refresh(st)
	case '4', '8':
		i.consumeTilde()
		st.pos = len(st.line)
		i.refresh(st)
	case '3':
		i.consumeTilde()
		st.deleteAt()
		i.refresh(st)
	}
	return nil
}

// consumeTilde eats the trailing '~' of a vt-style CSI sequence.
func (i *Instance) consumeTilde() {
	if r, _, err := i.reader.ReadRune(); err == nil && r != '~' {
		_ = i.reader.UnreadRune()
	}
}

func (i *Instance) historyPrev(st *editState) {
	if i.History.Pos == i.History.Size() {
		st.saved = append([]rune{}, st.line...)
	}
	if line, ok := i.History.Prev(); ok {
		st.line = []rune(line)
		st.pos = len(st.line)
		i.refresh(st)
	}
}

func (i *Instance) historyNext(st *editState) {
	if i.History.Pos == i.History.Size() {
		return
	}
	line, ok := i.History.Next()
	if !ok {
		st.line = append([]rune{}, st.saved...)
	} else {
		st.line = []rune(line)
	}
	st.pos = len(st.line)
	i.refresh(st)
}

// refresh redraws the prompt and line, then parks the cursor at
// st.pos. Widths are measured with runewidth so double-width runes
// keep the cursor honest.
func (i *Instance) refresh(st *editState) {
	var out strings.Builder
	out.WriteString(cursorBOL + clearToEOL)
	out.WriteString(i.Prompt)
	if len(st.line) == 0 && i.Placeholder != "" {
		out.WriteString(colorGrey + i.Placeholder + colorReset)
		out.WriteString(cursorBOL)
		out.WriteString(cursorRightN(runewidth.StringWidth(i.Prompt)))
	} else {
		out.WriteString(string(st.line))
		if tail := runewidth.StringWidth(string(st.line[st.pos:])); tail > 0 {
			out.WriteString(cursorLeftN(tail))
		}
	}
	fmt.Print(out.String())
}

func cursorLeftN(n int) string {
	return fmt.Sprintf("\x1b[%dD", n)
}

func cursorRightN(n int) string {
	return fmt.Sprintf("\x1b[%dC", n)
}

func (st *editState) insert(r rune) {
	st.line = append(st.line, 0)
	copy(st.line[st.pos+1:], st.line[st.pos:])
	st.line[st.pos] = r
	st.pos++
}

// deleteAt removes the rune under the cursor, if any.
func (st *editState) deleteAt() {
	if st.pos < len(st.line) {
		st.line = append(st.line[:st.pos], st.line[st.pos+1:]...)
	}
}

func (st *editState) moveLeft() {
	if st.pos > 0 {
		st.pos--
	}
}

func (st *editState) moveRight() {
	if st.pos < len(st.line) {
		st.pos++
	}
}

func (st *editState) moveLeftWord() {
	for st.pos > 0 && st.line[st.pos-1] == ' ' {
		st.pos--
	}
	for st.pos > 0 && st.line[st.pos-1] != ' ' {
		st.pos--
	}
}

func (st *editState) moveRightWord() {
	for st.pos < len(st.line) && st.line[st.pos] != ' ' {
		st.pos++
	}
	for st.pos < len(st.line) && st.line[st.pos] == ' ' {
		st.pos++
	}
}

// deleteWord removes the word (and trailing spaces) left of the
// cursor.
func (st *editState) deleteWord() {
	start := st.pos
	for st.pos > 0 && st.line[st.pos-1] == ' ' {
		st.pos--
	}
	for st.pos > 0 && st.line[st.pos-1] != ' ' {
		st.pos--
	}
	st.line = append(st.line[:st.pos], st.line[start:]...)
}
