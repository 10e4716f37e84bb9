package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/please-run/please/internal/message"
)

// Encode serializes a frame using a compact, self-delimiting encoding:
// a leading variant tag, then the payload. Request carries a uvarint
// message count, then per message one role byte and a
// uvarint-length-prefixed content string; Log and Answer carry one
// uvarint-length-prefixed string; Stop carries nothing. There is no
// outer frame length; a decoder resumes by
// re-parsing from the start of whatever bytes it has buffered.
func Encode(f Frame) []byte {
	var buf []byte
	buf = append(buf, byte(f.Kind))

	switch f.Kind {
	case KindRequest:
		buf = appendUvarint(buf, uint64(len(f.Messages)))
		for _, m := range f.Messages {
			buf = append(buf, byte(m.Role))
			buf = appendString(buf, m.Content)
		}
	case KindLog, KindAnswer:
		buf = appendString(buf, f.Text)
	case KindStop:
		// no payload
	}
	return buf
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// errNeedMore is returned internally when the buffer does not yet
// contain a complete frame. It is never returned to callers of
// Decode; they get ok=false instead.
var errNeedMore = fmt.Errorf("frame: need more bytes")

// Decode attempts to parse exactly one frame from the front of buf.
// On success it returns the frame, the unconsumed remainder of buf,
// and ok=true. If buf does not yet hold a complete frame, ok is false
// and rest equals buf unchanged. A malformed tag is a decode error;
// truncation is never an error, only "need more".
func Decode(buf []byte) (f Frame, rest []byte, ok bool, err error) {
	cur := buf
	tag, cur, e := readByte(cur)
	if e != nil {
		return Frame{}, buf, false, nil
	}

	switch Kind(tag) {
	case KindRequest:
		count, cur2, e := readUvarint(cur)
		if e != nil {
			return Frame{}, buf, false, nil
		}
		cur = cur2
		var msgs []message.Message
		for i := uint64(0); i < count; i++ {
			roleB, cur2, e := readByte(cur)
			if e != nil {
				return Frame{}, buf, false, nil
			}
			cur = cur2
			s, cur3, e := readString(cur)
			if e != nil {
				return Frame{}, buf, false, nil
			}
			cur = cur3
			msgs = append(msgs, message.Message{Role: message.Role(roleB), Content: s})
		}
		return Frame{Kind: KindRequest, Messages: msgs}, cur, true, nil
	case KindLog:
		s, cur2, e := readString(cur)
		if e != nil {
			return Frame{}, buf, false, nil
		}
		return Frame{Kind: KindLog, Text: s}, cur2, true, nil
	case KindAnswer:
		s, cur2, e := readString(cur)
		if e != nil {
			return Frame{}, buf, false, nil
		}
		return Frame{Kind: KindAnswer, Text: s}, cur2, true, nil
	case KindStop:
		return Frame{Kind: KindStop}, cur, true, nil
	default:
		return Frame{}, buf, false, fmt.Errorf("frame: unknown variant tag %d", tag)
	}
}

func readByte(buf []byte) (byte, []byte, error) {
	if len(buf) < 1 {
		return 0, buf, errNeedMore
	}
	return buf[0], buf[1:], nil
}

func readUvarint(buf []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, buf, errNeedMore
	}
	return v, buf[n:], nil
}

func readString(buf []byte) (string, []byte, error) {
	length, rest, err := readUvarint(buf)
	if err != nil {
		return "", buf, err
	}
	if uint64(len(rest)) < length {
		return "", buf, errNeedMore
	}
	return string(rest[:length]), rest[length:], nil
}
