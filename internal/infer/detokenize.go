package infer

import (
	"log/slog"
	"unicode/utf8"
)

// detokenizer accumulates token bytes and emits the longest valid
// UTF-8 prefix on each feed, retaining any incomplete tail.
type detokenizer struct {
	backend Backend
	pending []byte
}

func newDetokenizer(b Backend) *detokenizer {
	return &detokenizer{backend: b}
}

// feed converts token to bytes, appends them to the pending buffer,
// and returns the longest valid UTF-8 prefix now available.
func (d *detokenizer) feed(token Token) (string, error) {
	b, err := d.backend.TokenToBytes(token)
	if err != nil {
		return "", err
	}
	d.pending = append(d.pending, b...)

	if utf8.Valid(d.pending) {
		out := string(d.pending)
		d.pending = d.pending[:0]
		return out, nil
	}

	n := validUTF8Prefix(d.pending)
	if n == 0 {
		return "", nil
	}
	out := string(d.pending[:n])
	d.pending = d.pending[n:]
	return out, nil
}

// flush is called at stream end: if bytes remain that never completed
// a valid codepoint, it emits exactly one U+FFFD and logs a warning.
func (d *detokenizer) flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	slog.Warn("detokenizer: discarding incomplete trailing bytes at stream end", "bytes", len(d.pending))
	d.pending = d.pending[:0]
	return "�"
}

// validUTF8Prefix returns the length of the longest prefix of b that
// is valid UTF-8, stopping short of any trailing incomplete sequence.
func validUTF8Prefix(b []byte) int {
	i := 0
	for i < len(b) {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			if len(b)-i < utf8.UTFMax && isPossibleIncompleteSequence(b[i:]) {
				return i
			}
			return i
		}
		i += size
	}
	return i
}

// isPossibleIncompleteSequence reports whether b could be the start
// of a valid multi-byte UTF-8 sequence that is simply missing its
// remaining continuation bytes.
func isPossibleIncompleteSequence(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	c := b[0]
	switch {
	case c&0x80 == 0:
		return false
	case c&0xE0 == 0xC0:
		return len(b) < 2
	case c&0xF0 == 0xE0:
		return len(b) < 3
	case c&0xF8 == 0xF0:
		return len(b) < 4
	default:
		return false
	}
}
