package patch

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// normalizeEOL folds CRLF and lone CR down to LF.
func normalizeEOL(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// setTrailingNewline trims any existing trailing newline and reapplies
// one iff want is true.
func setTrailingNewline(s string, want bool) string {
	t := strings.TrimRight(s, "\n")
	if want {
		t += "\n"
	}
	return t
}

// eqLineRelaxed compares two lines ignoring trailing whitespace.
func eqLineRelaxed(a, b string) bool {
	return strings.TrimRight(a, " \t") == strings.TrimRight(b, " \t")
}

// findLinesWindow locates the first window in before whose lines are
// all relaxed-equal to old, in order.
func findLinesWindow(before, old []string) (start, end int, ok bool) {
	if len(old) == 0 || len(before) < len(old) {
		return 0, 0, false
	}
outer:
	for start := 0; start <= len(before)-len(old); start++ {
		for k := range old {
			if !eqLineRelaxed(before[start+k], old[k]) {
				continue outer
			}
		}
		return start, start + len(old), true
	}
	return 0, 0, false
}

// fuzzyEditBudget is the maximum per-line Levenshtein distance allowed
// for a window to be accepted by findLinesWindowFuzzy.
const fuzzyEditBudget = 3

// findLinesWindowFuzzy is the bounded-fuzzy third stage: it scores
// every equal-length window against old line-by-line and accepts the
// first window where every line's edit distance clears the budget.
func findLinesWindowFuzzy(before, old []string) (start, end int, ok bool) {
	if len(old) == 0 || len(before) < len(old) {
		return 0, 0, false
	}
outer:
	for start := 0; start <= len(before)-len(old); start++ {
		for k := range old {
			if levenshtein.ComputeDistance(strings.TrimRight(before[start+k], " \t"), strings.TrimRight(old[k], " \t")) > fuzzyEditBudget {
				continue outer
			}
		}
		return start, start + len(old), true
	}
	return 0, 0, false
}

// preview renders a short single-line representation of s for error
// messages: newlines escaped, truncated past 160 runes.
func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	r := []rune(s)
	if len(r) > 160 {
		return string(r[:160]) + "…"
	}
	return s
}
