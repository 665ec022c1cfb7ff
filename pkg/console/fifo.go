package console

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// fifoPrefix names auto-created pipes so external processes can recognize
// them in the temp directory.
const fifoPrefix = "barebox-input-"

// FIFO manages the lifecycle of a named pipe used as an automation input
// source: another process writes commands into the pipe and the session
// forwards them to the target console.
//
// A pipe created by this process is removed again on Close; a pre-existing
// pipe is reused and left in place.
type FIFO struct {
	path    string
	created bool
	file    *os.File

	closeOnce sync.Once
	closeErr  error
}

// OpenFIFO creates (if necessary) and opens the named pipe at path for
// reading. An empty path auto-generates one in the temp directory, unique
// per process; the caller should announce it before the session starts so
// writers can attach. The pipe object exists before OpenFIFO returns, so
// an announcement made afterwards can never race a writer's open.
//
// A pre-existing pipe at path is reused. A pre-existing non-pipe object is
// refused.
//
// The read end is opened non-blocking: the open does not wait for a writer
// to attach, and reads on a writerless pipe return immediately so the
// session can treat them as silence.
func OpenFIFO(path string) (*FIFO, error) {
	f := &FIFO{}

	if path == "" {
		path = filepath.Join(os.TempDir(), fmt.Sprintf("%s%d.fifo", fifoPrefix, os.Getpid()))
	}

	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.Mode()&os.ModeNamedPipe == 0 {
			return nil, fmt.Errorf("%s exists but is not a FIFO", path)
		}
	case os.IsNotExist(err):
		if err := unix.Mkfifo(path, 0o600); err != nil {
			return nil, fmt.Errorf("mkfifo %s: %w", path, err)
		}
		f.created = true
	default:
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	f.path = path

	file, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if f.created {
			os.Remove(path)
		}
		return nil, fmt.Errorf("open fifo %s: %w", path, err)
	}
	f.file = file
	return f, nil
}

// Path returns the pipe's filesystem path.
func (f *FIFO) Path() string { return f.path }

// Created reports whether this process created the pipe object.
func (f *FIFO) Created() bool { return f.created }

func (f *FIFO) Read(p []byte) (int, error) {
	return f.file.Read(p)
}

// Close closes the read end and removes the pipe object if it was created
// by this process. Safe to call multiple times.
func (f *FIFO) Close() error {
	f.closeOnce.Do(func() {
		err := f.file.Close()
		if f.created {
			if rmErr := os.Remove(f.path); rmErr != nil && err == nil {
				err = rmErr
			}
		}
		f.closeErr = err
	})
	return f.closeErr
}

// isTemporaryReadError reports whether a read failed only because no data
// is available right now on a non-blocking descriptor.
func isTemporaryReadError(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// isClosedError reports whether a read failed because the descriptor was
// closed out from under the pump during session cleanup.
func isClosedError(err error) bool {
	return errors.Is(err, fs.ErrClosed)
}
