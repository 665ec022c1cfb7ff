package target

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/creack/pty"
	"github.com/rs/zerolog/log"

	"github.com/saschahauer/barebox-bringup/pkg/console"
)

// CommandDriver runs an emulator (or any local command) with its console
// on a pseudo-terminal. The PTY gives the child a real tty, so emulators
// and bootloaders behave exactly as they would on a serial line.
//
// QEMU invocations get -nographic appended before start, so the serial
// console lands on the PTY instead of a graphical window.
type CommandDriver struct {
	argv []string
	cmd  *exec.Cmd
	ptmx *os.File
}

// NewCommandDriver prepares a driver for the given argv.
func NewCommandDriver(argv []string) (*CommandDriver, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("command driver requires a command")
	}
	return &CommandDriver{argv: ensureNographic(argv)}, nil
}

// ensureNographic appends -nographic to QEMU command lines that lack it.
func ensureNographic(argv []string) []string {
	if !strings.Contains(filepath.Base(argv[0]), "qemu") {
		return argv
	}
	for _, arg := range argv[1:] {
		if arg == "-nographic" {
			return argv
		}
	}
	out := make([]string, 0, len(argv)+1)
	out = append(out, argv...)
	return append(out, "-nographic")
}

// Activate starts the command under a PTY. The console is readable from
// that moment on, so activation before power-up captures all boot output.
func (d *CommandDriver) Activate(ctx context.Context) error {
	cmd := exec.Command(d.argv[0], d.argv[1:]...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start %s: %w", d.argv[0], err)
	}
	d.cmd = cmd
	d.ptmx = ptmx
	log.Debug().
		Str("command", d.argv[0]).
		Int("pid", cmd.Process.Pid).
		Msg("console command started")
	return nil
}

func (d *CommandDriver) Console() console.Console {
	return d.ptmx
}

// Close terminates the command and reaps it.
func (d *CommandDriver) Close() error {
	if d.ptmx != nil {
		d.ptmx.Close()
	}
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
		d.cmd.Wait()
	}
	return nil
}
