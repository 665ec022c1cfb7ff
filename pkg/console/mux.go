package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultEscape is Ctrl-], the telnet-style detach byte. It is honored
	// on the keyboard source only and is never forwarded to the console.
	DefaultEscape = 0x1D

	readBufferSize   = 4096
	fifoPollInterval = 10 * time.Millisecond
)

// Options configure a console session.
type Options struct {
	// Keyboard is the operator input source, typically os.Stdin. nil
	// disables keyboard forwarding (output-only or FIFO-only sessions).
	Keyboard io.Reader

	// FIFO is an optional named-pipe input source for automation.
	FIFO *FIFO

	// Sinks receive every byte the console emits. nil means output is
	// drained and discarded (the console is still read to avoid
	// backpressure).
	Sinks *SinkSet

	// Timeout ends the session with ReasonTimedOut once elapsed.
	// Zero means no timeout.
	Timeout time.Duration

	// Interactive engages raw mode on the keyboard while the session runs,
	// provided the keyboard is attached to a real terminal. Without raw
	// mode, keyboard input arrives line-buffered by the terminal driver.
	Interactive bool

	// Escape overrides the detach byte. Zero selects DefaultEscape.
	Escape byte
}

// Mux runs one console session: it pumps console output to the configured
// sinks and forwards keyboard and FIFO input to the console until the
// session reaches a terminal state.
//
// The session state machine is Idle → Running → {Closed | TimedOut |
// Interrupted | Error}. Run drives the whole lifecycle; a Mux is single
// use. Cleanup (raw-mode restore, FIFO removal, log file close) happens on
// every exit path, exactly once.
type Mux struct {
	console Console
	opts    Options
	log     zerolog.Logger

	started atomic.Bool

	// done is closed exactly once, when the first terminal transition is
	// requested. Source pumps check it before every read.
	done   chan struct{}
	stop   sync.Once
	reason Reason
	cause  error
}

// chunk is one read result traveling from a source pump to the dispatcher.
type chunk struct {
	data []byte
	err  error
}

// NewMux creates a session multiplexer for the given console. The console
// must already be activated; the mux never closes it.
func NewMux(c Console, opts Options) *Mux {
	if opts.Escape == 0 {
		opts.Escape = DefaultEscape
	}
	if opts.Sinks == nil {
		opts.Sinks = NewSinkSet()
	}
	return &Mux{
		console: c,
		opts:    opts,
		log:     log.With().Str("component", "console-mux").Logger(),
		done:    make(chan struct{}),
	}
}

// Run blocks until the session reaches a terminal state and returns the
// termination reason. The error is non-nil only for ReasonError and carries
// the underlying I/O failure.
//
// Cancelling ctx ends the session with ReasonInterrupted. Run returns
// within a bounded time of any terminal transition even if a source is
// blocked in a read that cannot be cancelled; such reads are abandoned and
// their eventual result discarded.
func (m *Mux) Run(ctx context.Context) (Reason, error) {
	if !m.started.CompareAndSwap(false, true) {
		return ReasonError, fmt.Errorf("session already started")
	}

	guard, err := m.engageRawMode()
	if err != nil {
		m.cleanup(nil)
		return ReasonError, err
	}
	defer m.cleanup(guard)

	consoleCh := make(chan chunk)
	go m.readPump(m.console, consoleCh)

	var keyboardCh chan chunk
	if m.opts.Keyboard != nil {
		keyboardCh = make(chan chunk)
		go m.readPump(m.opts.Keyboard, keyboardCh)
	}

	var fifoCh chan chunk
	if m.opts.FIFO != nil {
		fifoCh = make(chan chunk)
		go m.fifoPump(m.opts.FIFO, fifoCh)
	}

	var timeoutCh <-chan time.Time
	if m.opts.Timeout > 0 {
		timer := time.NewTimer(m.opts.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			m.finish(ReasonInterrupted, nil)

		case <-timeoutCh:
			m.finish(ReasonTimedOut, nil)

		case c := <-consoleCh:
			switch {
			case c.err == io.EOF:
				m.finish(ReasonClosed, nil)
			case c.err != nil:
				m.finish(ReasonError, fmt.Errorf("console read: %w", c.err))
			default:
				// Sink failures are recorded inside the set and do not
				// end the session.
				m.opts.Sinks.Write(c.data)
			}

		case c := <-keyboardCh:
			if c.err == io.EOF {
				// Keyboard end-of-stream: the operator is gone, detach
				// quietly.
				m.finish(ReasonInterrupted, nil)
				break
			}
			if c.err != nil {
				m.finish(ReasonError, fmt.Errorf("keyboard read: %w", c.err))
				break
			}
			data, escaped := splitAtEscape(c.data, m.opts.Escape)
			if err := m.forward(data); err != nil {
				m.finish(ReasonError, err)
				break
			}
			if escaped {
				m.finish(ReasonInterrupted, nil)
			}

		case c := <-fifoCh:
			if c.err != nil {
				m.finish(ReasonError, fmt.Errorf("fifo read: %w", c.err))
				break
			}
			if err := m.forward(c.data); err != nil {
				m.finish(ReasonError, err)
			}
		}

		select {
		case <-m.done:
			return m.reason, m.cause
		default:
		}
	}
}

// finish requests the transition out of Running. The first caller wins;
// later requests are ignored.
func (m *Mux) finish(reason Reason, cause error) {
	m.stop.Do(func() {
		m.reason = reason
		m.cause = cause
		close(m.done)
	})
}

// forward writes input bytes to the console. A console write failure ends
// the session with ReasonError: the target went away mid-input.
func (m *Mux) forward(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if _, err := m.console.Write(data); err != nil {
		return fmt.Errorf("console write: %w", err)
	}
	return nil
}

// splitAtEscape returns the bytes preceding the escape byte and whether it
// was present. The escape byte and everything after it are dropped.
func splitAtEscape(data []byte, escape byte) ([]byte, bool) {
	if i := bytes.IndexByte(data, escape); i >= 0 {
		return data[:i], true
	}
	return data, false
}

// readPump issues blocking reads against r and delivers each result to ch.
// It stops issuing reads once the session has left Running; a read already
// in flight at that point is abandoned and its result discarded.
func (m *Mux) readPump(r io.Reader, ch chan<- chunk) {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-m.done:
			return
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case ch <- chunk{data: data}:
			case <-m.done:
				return
			}
		}
		if err != nil {
			select {
			case ch <- chunk{err: err}:
			case <-m.done:
			}
			return
		}
	}
}

// fifoPump polls the FIFO read end. The read end is non-blocking: a pipe
// with no attached writer reads as immediate end-of-stream, which is not
// distinguishable from a writer that attached and left again. Both are
// treated as silence and re-polled, so a quiet FIFO never ends the session.
func (m *Mux) fifoPump(f *FIFO, ch chan<- chunk) {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-m.done:
			return
		default:
		}

		n, err := f.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case ch <- chunk{data: data}:
			case <-m.done:
				return
			}
		}
		if err != nil {
			if err == io.EOF || isTemporaryReadError(err) {
				select {
				case <-time.After(fifoPollInterval):
					continue
				case <-m.done:
					return
				}
			}
			if isClosedError(err) {
				return
			}
			select {
			case ch <- chunk{err: err}:
			case <-m.done:
			}
			return
		}
	}
}

// engageRawMode acquires raw mode for interactive sessions whose keyboard
// is a file descriptor. Acquisition on a non-terminal descriptor is a
// successful no-op, so callers need not branch on terminal-ness.
func (m *Mux) engageRawMode() (*RawGuard, error) {
	if !m.opts.Interactive || m.opts.Keyboard == nil {
		return nil, nil
	}
	f, ok := m.opts.Keyboard.(*os.File)
	if !ok {
		return nil, nil
	}
	guard, err := AcquireRaw(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("raw mode: %w", err)
	}
	return guard, nil
}

// cleanup releases session resources. It runs on every exit path; each
// release is idempotent. Failures are logged, not raised: the session
// outcome is already decided and the process is unwinding.
func (m *Mux) cleanup(guard *RawGuard) {
	if guard != nil {
		if err := guard.Release(); err != nil {
			m.log.Warn().Err(err).Msg("failed to restore terminal mode")
		}
	}
	if m.opts.FIFO != nil {
		if err := m.opts.FIFO.Close(); err != nil {
			m.log.Warn().Err(err).Msg("failed to close input FIFO")
		}
	}
	if err := m.opts.Sinks.Close(); err != nil {
		m.log.Warn().Err(err).Msg("failed to close output sinks")
	}
}
