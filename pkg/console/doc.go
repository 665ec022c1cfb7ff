// Package console multiplexes a target's console stream between the
// operator's terminal, a log file, and an automation FIFO.
//
// It implements the interactive core of the bringup tool: once a target
// driver has produced a duplex console stream, the multiplexer pumps
// console output to every configured sink and forwards operator input
// (keyboard and/or named pipe) back to the console, until the console
// closes, a timeout elapses, the operator detaches, or the surrounding
// context is cancelled.
//
// # ARCHITECTURE
//
// One goroutine per byte source feeds a single dispatch loop:
//
//	target console ─┐                      ┌─→ terminal (stdout)
//	keyboard ───────┼─→ chunk channels ─→ dispatch ─→ log file
//	input FIFO ─────┘                      └─→ target console (input)
//
// The dispatch loop is the only writer, so console emission order is
// preserved at every sink and each input source's byte order is preserved
// toward the console. The first event that ends the session (console EOF,
// timeout, escape byte, context cancellation, I/O error) decides the
// termination reason; source goroutines observe the decision before their
// next read and stop.
//
// Key components:
//   - Mux: the session dispatch loop and its source pumps
//   - RawGuard: scoped raw-mode acquisition using golang.org/x/term
//   - FIFO: named-pipe input source lifecycle (create, poll, remove)
//   - SinkSet: fan-out of console output to terminal and log file
//
// # USAGE
//
//	sinks := console.NewSinkSet()
//	sinks.AddWriter("terminal", os.Stdout)
//	if err := sinks.AddLogFile("session.log"); err != nil {
//	    return err
//	}
//
//	mux := console.NewMux(target.Console(), console.Options{
//	    Keyboard:    os.Stdin,
//	    Sinks:       sinks,
//	    Timeout:     60 * time.Second,
//	    Interactive: true,
//	})
//	reason, err := mux.Run(ctx)
//
// Press Ctrl-] to detach from an interactive session.
package console
