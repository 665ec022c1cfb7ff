package console

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkSetFansOutInOrder(t *testing.T) {
	var order []string
	first := &recordingWriter{name: "first", order: &order}
	second := &recordingWriter{name: "second", order: &order}

	s := NewSinkSet()
	s.AddWriter("first", first)
	s.AddWriter("second", second)

	_, err := s.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = s.Write([]byte("def"))
	require.NoError(t, err)

	assert.Equal(t, "abcdef", first.buf.String())
	assert.Equal(t, "abcdef", second.buf.String())
	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
}

func TestSinkSetDeactivatesFailedSink(t *testing.T) {
	broken := &failingWriter{}
	var good bytes.Buffer

	s := NewSinkSet()
	s.AddWriter("broken", broken)
	s.AddWriter("good", &good)

	s.Write([]byte("one"))
	s.Write([]byte("two"))

	assert.Equal(t, 1, broken.writes, "a failed sink must not be retried")
	assert.Equal(t, "onetwo", good.String())

	errs := s.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs, "broken")
}

func TestSinkSetLogFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	require.NoError(t, os.WriteFile(path, []byte("earlier run\n"), 0o644))

	s := NewSinkSet()
	require.NoError(t, s.AddLogFile(path))

	_, err := s.Write([]byte("this run\n"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "earlier run\nthis run\n", string(content), "log attach must never truncate")
}

func TestSinkSetEmptyDiscards(t *testing.T) {
	s := NewSinkSet()
	n, err := s.Write([]byte("dropped"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestSinkSetCloseIdempotent(t *testing.T) {
	s := NewSinkSet()
	require.NoError(t, s.AddLogFile(filepath.Join(t.TempDir(), "x.log")))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

type recordingWriter struct {
	name  string
	order *[]string
	buf   bytes.Buffer
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	*w.order = append(*w.order, w.name)
	return w.buf.Write(p)
}
