package frame

import (
	"errors"
	"io"
	"net"
	"time"
)

// Reader accumulates bytes from a connection and decodes frames from
// the front of its buffer, one at a time, tolerating arbitrary chunk
// boundaries between reads.
type Reader struct {
	conn net.Conn
	buf  []byte
}

func NewReader(conn net.Conn) *Reader {
	return &Reader{conn: conn, buf: make([]byte, 0, 4096)}
}

// ReadFrame blocks until a complete frame is available, totalTimeout
// elapses, or the connection is closed. perReadTimeout bounds each
// underlying read; when it elapses the read is retried, so on its own
// it does not end the call with a timeout. A zero duration means "no
// timeout" for that dimension.
func (r *Reader) ReadFrame(perReadTimeout, totalTimeout time.Duration) (Frame, error) {
	deadline := time.Time{}
	if totalTimeout > 0 {
		deadline = time.Now().Add(totalTimeout)
	}

	chunk := make([]byte, 4096)
	for {
		if len(r.buf) > 0 {
			f, rest, ok, err := Decode(r.buf)
			if err != nil {
				return Frame{}, &TransportError{Kind: ErrDecode, Err: err}
			}
			if ok {
				r.buf = rest
				return f, nil
			}
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return Frame{}, &TransportError{Kind: ErrTimeout}
		}

		if perReadTimeout > 0 {
			readDeadline := time.Now().Add(perReadTimeout)
			if !deadline.IsZero() && deadline.Before(readDeadline) {
				readDeadline = deadline
			}
			_ = r.conn.SetReadDeadline(readDeadline)
		} else {
			_ = r.conn.SetReadDeadline(deadline)
		}

		n, err := r.conn.Read(chunk)
		if n > 0 {
			r.buf = append(r.buf, chunk[:n]...)
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// Per-read timeout elapsed; loop to re-check the total
				// deadline and try again.
				continue
			}
			if errors.Is(err, io.EOF) {
				if len(r.buf) == 0 {
					return Frame{}, &TransportError{Kind: ErrDisconnect}
				}
				// EOF mid-frame: the peer closed with a partial frame
				// buffered. Treat as disconnect; the frame is lost.
				return Frame{}, &TransportError{Kind: ErrDisconnect}
			}
			return Frame{}, &TransportError{Kind: ErrIO, Err: err}
		}
	}
}

// WriteFrame serializes and writes f to the connection.
func WriteFrame(conn net.Conn, f Frame) error {
	_, err := conn.Write(Encode(f))
	if err != nil {
		return &TransportError{Kind: ErrIO, Err: err}
	}
	return nil
}
