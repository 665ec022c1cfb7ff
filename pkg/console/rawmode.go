package console

import (
	"sync"

	"golang.org/x/term"
)

// RawGuard holds a terminal in raw mode and restores the prior settings on
// release. While held, the terminal delivers bytes without line buffering,
// local echo, or signal-generating control characters, so the escape byte
// and other control bytes reach the session as data.
//
// Acquiring on a descriptor that is not a terminal succeeds and yields a
// guard whose Release is a no-op, so callers never branch on terminal-ness.
type RawGuard struct {
	fd    int
	state *term.State

	once sync.Once
	err  error
}

// AcquireRaw switches fd into raw mode and captures the prior settings.
func AcquireRaw(fd int) (*RawGuard, error) {
	g := &RawGuard{fd: fd}
	if !term.IsTerminal(fd) {
		return g, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	g.state = state
	return g, nil
}

// Active reports whether raw mode is actually engaged.
func (g *RawGuard) Active() bool {
	return g.state != nil
}

// Release restores the terminal to its pre-acquisition settings. Safe to
// call multiple times; only the first call restores.
func (g *RawGuard) Release() error {
	g.once.Do(func() {
		if g.state != nil {
			g.err = term.Restore(g.fd, g.state)
		}
	})
	return g.err
}
