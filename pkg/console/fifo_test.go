package console

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFIFOAutoPath(t *testing.T) {
	f, err := OpenFIFO("")
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, f.Created())
	assert.True(t, strings.Contains(f.Path(), fifoPrefix), "auto path should carry the recognizable prefix")
	assert.True(t, strings.Contains(f.Path(), fmt.Sprint(os.Getpid())), "auto path should be unique per process")

	info, err := os.Stat(f.Path())
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeNamedPipe)

	require.NoError(t, f.Close())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err), "auto-created pipe should be removed on close")

	assert.NoError(t, f.Close(), "close must be idempotent")
}

func TestOpenFIFOCreatesAtGivenPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmds.fifo")

	f, err := OpenFIFO(path)
	require.NoError(t, err)
	assert.True(t, f.Created())
	assert.Equal(t, path, f.Path())

	require.NoError(t, f.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenFIFOReusesExistingPipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmds.fifo")

	first, err := OpenFIFO(path)
	require.NoError(t, err)

	second, err := OpenFIFO(path)
	require.NoError(t, err)
	assert.False(t, second.Created())

	// Closing the reuser must leave the pipe in place.
	require.NoError(t, second.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err)

	require.NoError(t, first.Close())
}

func TestOpenFIFORefusesNonPipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regular")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	_, err := OpenFIFO(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a FIFO")
}

func TestFIFOReadWithoutWriterIsSilence(t *testing.T) {
	f, err := OpenFIFO(filepath.Join(t.TempDir(), "idle.fifo"))
	require.NoError(t, err)
	defer f.Close()

	// With no writer attached the non-blocking read end reports immediate
	// end-of-stream rather than blocking process startup.
	buf := make([]byte, 16)
	n, err := f.Read(buf)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFIFOWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rt.fifo")
	f, err := OpenFIFO(path)
	require.NoError(t, err)
	defer f.Close()

	go func() {
		w, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			t.Errorf("open fifo for writing: %v", err)
			return
		}
		defer w.Close()
		w.Write([]byte("hello"))
	}()

	// Poll the way the session pump does: end-of-stream means no writer
	// yet, not a dead pipe.
	buf := make([]byte, 16)
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			assert.Equal(t, "hello", string(buf[:n]))
			return
		}
		if err != nil && err != io.EOF && !isTemporaryReadError(err) {
			t.Fatalf("unexpected read error: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for FIFO data")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
