package console

import "io"

// Console is the duplex byte stream of a target's text interface, supplied
// by a target driver after activation. Reads and writes may each block
// independently; Read returning io.EOF means the target console closed.
//
// The multiplexer holds exclusive read/write access to the console for the
// duration of a session but never closes it; the console's lifetime belongs
// to the driver that produced it.
type Console interface {
	io.Reader
	io.Writer
}

// Reason reports why a session ended.
type Reason int

const (
	// ReasonClosed means the target console reached end-of-stream.
	ReasonClosed Reason = iota

	// ReasonTimedOut means the session timeout elapsed.
	ReasonTimedOut

	// ReasonInterrupted means the operator detached (escape byte, keyboard
	// end-of-stream) or the session context was cancelled.
	ReasonInterrupted

	// ReasonError means an I/O error on the console or an input source
	// ended the session. The cause is returned alongside the reason.
	ReasonError
)

func (r Reason) String() string {
	switch r {
	case ReasonClosed:
		return "closed"
	case ReasonTimedOut:
		return "timeout"
	case ReasonInterrupted:
		return "interrupted"
	case ReasonError:
		return "error"
	default:
		return "unknown"
	}
}
