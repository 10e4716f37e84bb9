package patch

import (
	"fmt"
	"strings"
)

// SummarizeForPreview renders a full, untruncated diff-like preview
// of a proposed patch: raw content for overwrite mode, a unified-diff
// style rendering of every op for patch mode.
func SummarizeForPreview(raw string) (string, bool) {
	if !ContainsMarkers(raw) {
		return raw, true
	}

	ops, err := ParseOps(raw)
	if err != nil {
		return "", false
	}

	var out strings.Builder
	for _, op := range ops {
		switch op.Kind {
		case OpAdd:
			out.WriteString("--- /dev/null\n")
			fmt.Fprintf(&out, "+++ %s\n", op.Path)
			out.WriteString("@@\n")
			for _, l := range strings.Split(op.Content, "\n") {
				out.WriteString("+")
				out.WriteString(l)
				out.WriteString("\n")
			}
			out.WriteString("\n")
		case OpDelete:
			fmt.Fprintf(&out, "--- %s\n", op.Path)
			out.WriteString("+++ /dev/null\n")
			out.WriteString("@@\n\n")
		case OpUpdate:
			fmt.Fprintf(&out, "--- %s\n", op.Path)
			fmt.Fprintf(&out, "+++ %s\n", op.Path)
			for _, h := range op.Hunks {
				out.WriteString("@@\n")
				n := len(h.OldLines)
				if len(h.NewLines) < n {
					n = len(h.NewLines)
				}
				for i := 0; i < n; i++ {
					old, newl := h.OldLines[i], h.NewLines[i]
					if old == newl {
						out.WriteString(" ")
						out.WriteString(old)
						out.WriteString("\n")
					} else {
						out.WriteString("-")
						out.WriteString(old)
						out.WriteString("\n")
						out.WriteString("+")
						out.WriteString(newl)
						out.WriteString("\n")
					}
				}
				for i := n; i < len(h.OldLines); i++ {
					out.WriteString("-")
					out.WriteString(h.OldLines[i])
					out.WriteString("\n")
				}
				for i := n; i < len(h.NewLines); i++ {
					out.WriteString("+")
					out.WriteString(h.NewLines[i])
					out.WriteString("\n")
				}
				out.WriteString("\n")
			}
		}
	}
	return out.String(), true
}
