package patch

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

type marker int

const (
	markerBegin marker = iota
	markerEnd
)

type header int

const (
	headerUpdate header = iota
	headerAdd
	headerDelete
)

// noNewlineRe matches "no newline at end of file"-style commentary:
// tolerant of an optional leading backslash and of arbitrary text
// between the three anchor tokens, case-insensitive. Requires "no",
// then "new", then "line" to appear as substrings in that order.
var noNewlineRe = regexp2.MustCompile(`(?is)no.*new.*line`, regexp2.None)

func isNoNewlineCommentLine(s string) bool {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(t, `\`)
	ok, err := noNewlineRe.MatchString(t)
	return err == nil && ok
}

// ParseOps parses a patch document between "*** Begin Patch" and
// "*** End Patch" markers into a sequence of Ops.
func ParseOps(raw string) ([]Op, error) {
	src := normalizeEOL(raw)
	lines := strings.Split(src, "\n")

	beginIdx, ok := findMarker(lines, 0, markerBegin)
	if !ok {
		return nil, fmt.Errorf("missing *** Begin Patch")
	}
	i := beginIdx + 1
	end, ok := findMarker(lines, i, markerEnd)
	if !ok {
		return nil, fmt.Errorf("missing *** End Patch")
	}

	var ops []Op
	for i < end {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			continue
		}

		if path, ok := parseHeaderPath(line, headerUpdate); ok {
			i++
			hunks, noNewline := parseUpdateHunks(lines, &i, end)
			ops = append(ops, Op{Kind: OpUpdate, Path: path, Hunks: hunks, NoNewline: noNewline})
			continue
		}
		if path, ok := parseHeaderPath(line, headerAdd); ok {
			i++
			content, noNewline := parseAddBlock(lines, &i, end)
			ops = append(ops, Op{Kind: OpAdd, Path: path, Content: content, NoNewline: noNewline})
			continue
		}
		if path, ok := parseHeaderPath(line, headerDelete); ok {
			i++
			ops = append(ops, Op{Kind: OpDelete, Path: path})
			continue
		}

		i++
	}

	return ops, nil
}

// ContainsMarkers reports whether raw holds a Begin/End Patch pair,
// which selects patch mode over verbatim-overwrite mode.
func ContainsMarkers(raw string) bool {
	src := normalizeEOL(raw)
	lines := strings.Split(src, "\n")
	begin, ok := findMarker(lines, 0, markerBegin)
	if !ok {
		return false
	}
	_, ok = findMarker(lines, begin+1, markerEnd)
	return ok
}

func findMarker(lines []string, i int, which marker) (int, bool) {
	for ; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		lower := strings.ToLower(t)
		hasStars := strings.HasPrefix(lower, "***")
		isBegin := strings.Contains(lower, "begin") && strings.Contains(lower, "patch")
		isEnd := strings.Contains(lower, "end") && strings.Contains(lower, "patch")
		var ok bool
		switch which {
		case markerBegin:
			ok = hasStars && isBegin
		case markerEnd:
			ok = hasStars && isEnd
		}
		if ok {
			return i, true
		}
	}
	return 0, false
}

func parseHeaderPath(line string, h header) (string, bool) {
	l := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "***"))
	var kw string
	switch h {
	case headerUpdate:
		kw = "update file"
	case headerAdd:
		kw = "add file"
	case headerDelete:
		kw = "delete file"
	}

	lLower := strings.ToLower(l)
	kwNoSpace := strings.ReplaceAll(kw, " ", "")
	if !strings.HasPrefix(lLower, kw) && !strings.HasPrefix(strings.ReplaceAll(lLower, " ", ""), kwNoSpace) {
		return "", false
	}

	var after string
	if pos := strings.Index(l, ":"); pos >= 0 {
		after = l[pos+1:]
	} else if len(l) >= len(kw) {
		after = l[len(kw):]
	}
	path := strings.Trim(strings.TrimSpace(after), `"`)
	if path == "" {
		return "", false
	}
	return path, true
}

func parseUpdateHunks(lines []string, i *int, end int) ([]Hunk, bool) {
	var hunks []Hunk
	if *i < end && strings.HasPrefix(strings.TrimLeft(lines[*i], " \t"), "```") {
		*i++
	}

	var cur Hunk
	haveAny := false
	noNewline := false

	for *i < end {
		t := strings.TrimLeft(lines[*i], " \t")
		if strings.HasPrefix(t, "***") || strings.EqualFold(t, "*** end patch") {
			break
		}
		if strings.HasPrefix(t, "```") {
			*i++
			break
		}

		if strings.HasPrefix(t, "@@") {
			if haveAny {
				hunks = append(hunks, cur)
				cur = Hunk{}
				haveAny = false
			}
			*i++
			continue
		}

		raw := lines[*i]
		switch {
		case strings.HasPrefix(raw, "+ "):
			cur.NewLines = append(cur.NewLines, raw[2:])
			haveAny = true
		case strings.HasPrefix(raw, "- "):
			cur.OldLines = append(cur.OldLines, raw[2:])
			haveAny = true
		case strings.HasPrefix(raw, "+"):
			cur.NewLines = append(cur.NewLines, raw[1:])
			haveAny = true
		case strings.HasPrefix(raw, "-"):
			cur.OldLines = append(cur.OldLines, raw[1:])
			haveAny = true
		case strings.HasPrefix(raw, " "):
			line := raw[1:]
			cur.OldLines = append(cur.OldLines, line)
			cur.NewLines = append(cur.NewLines, line)
			haveAny = true
		case isNoNewlineCommentLine(raw):
			noNewline = true
		default:
			cur.OldLines = append(cur.OldLines, raw)
			cur.NewLines = append(cur.NewLines, raw)
			haveAny = true
		}

		*i++
	}

	if haveAny {
		hunks = append(hunks, cur)
	}
	if *i < end && strings.HasPrefix(strings.TrimLeft(lines[*i], " \t"), "```") {
		*i++
	}
	return hunks, noNewline
}

func parseAddBlock(lines []string, i *int, end int) (string, bool) {
	var out []string
	noNewline := false
	fenced := *i < end && strings.HasPrefix(strings.TrimLeft(lines[*i], " \t"), "```")
	if fenced {
		*i++
		for *i < end {
			t := strings.TrimLeft(lines[*i], " \t")
			if strings.HasPrefix(t, "```") {
				*i++
				break
			}
			out = append(out, lines[*i])
			*i++
		}
	} else {
		for *i < end {
			t := strings.TrimLeft(lines[*i], " \t")
			if strings.HasPrefix(t, "***") || strings.EqualFold(t, "*** end patch") {
				break
			}
			out = append(out, lines[*i])
			*i++
		}
	}

	for len(out) > 0 {
		last := out[len(out)-1]
		trimmed := strings.TrimSpace(last)
		if trimmed == "" {
			out = out[:len(out)-1]
			continue
		}
		if isNoNewlineCommentLine(trimmed) {
			out = out[:len(out)-1]
			noNewline = true
		}
		break
	}
	return strings.Join(out, "\n"), noNewline
}
