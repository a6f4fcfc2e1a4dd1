package framed

import (
	"bytes"
)

type (
	// Codec turns a byte stream into discrete frames and back.
	// Implementations are stateful: Decode accumulates partial frames across
	// calls. A Codec instance must never be shared between connections;
	// the server clones the configured prototype per accept, separately for
	// the input and output direction.
	Codec interface {
		// Decode feeds raw bytes in and returns zero or more complete frames.
		// Leftover bytes are retained until a later call completes them.
		// Decode never blocks and never fails: framing policy is entirely up
		// to the implementation.
		Decode(p []byte) [][]byte
		// Encode renders one outbound frame into wire bytes.
		Encode(frame []byte) []byte
		// Clone returns a fresh instance sharing configuration but no
		// mutable state with the receiver.
		Clone() Codec
	}

	// LineCodec frames on a line terminator. Inbound frames are split on
	// '\n' with a trailing '\r' stripped, so both unix and network newlines
	// decode to the same frame. Outbound frames get Terminator appended.
	// Any byte sequence is eventually frameable; LineCodec has no error
	// states.
	LineCodec struct {
		// Terminator appended by Encode. Empty means "\n".
		Terminator string

		buf []byte
	}
)

// NewLineCodec returns a LineCodec with the default "\n" terminator.
func NewLineCodec() *LineCodec {
	return &LineCodec{}
}

func (lc *LineCodec) Decode(p []byte) [][]byte {
	lc.buf = append(lc.buf, p...)
	var frames [][]byte
	for {
		i := bytes.IndexByte(lc.buf, '\n')
		if i < 0 {
			return frames
		}
		line := lc.buf[:i]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		frame := make([]byte, len(line))
		copy(frame, line)
		frames = append(frames, frame)
		lc.buf = lc.buf[i+1:]
	}
}

func (lc *LineCodec) Encode(frame []byte) []byte {
	term := lc.Terminator
	if term == "" {
		term = "\n"
	}
	out := make([]byte, 0, len(frame)+len(term))
	out = append(out, frame...)
	out = append(out, term...)
	return out
}

func (lc *LineCodec) Clone() Codec {
	return &LineCodec{Terminator: lc.Terminator}
}
