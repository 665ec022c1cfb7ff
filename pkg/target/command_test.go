package target

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureNographic(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want []string
	}{
		{
			name: "qemu gains nographic",
			argv: []string{"qemu-system-arm", "-M", "vexpress-a9"},
			want: []string{"qemu-system-arm", "-M", "vexpress-a9", "-nographic"},
		},
		{
			name: "qemu with nographic untouched",
			argv: []string{"qemu-system-x86_64", "-nographic"},
			want: []string{"qemu-system-x86_64", "-nographic"},
		},
		{
			name: "qemu by path",
			argv: []string{"/usr/bin/qemu-system-riscv64"},
			want: []string{"/usr/bin/qemu-system-riscv64", "-nographic"},
		},
		{
			name: "non-qemu untouched",
			argv: []string{"renode", "--console"},
			want: []string{"renode", "--console"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ensureNographic(tt.argv)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewCommandDriverRequiresCommand(t *testing.T) {
	_, err := NewCommandDriver(nil)
	require.Error(t, err)
}

func TestCommandDriverRunsUnderPTY(t *testing.T) {
	d, err := NewCommandDriver([]string{"sh", "-c", "echo ready; sleep 5"})
	require.NoError(t, err)

	require.NoError(t, d.Activate(context.Background()))
	defer d.Close()

	con := d.Console()
	require.NotNil(t, con)

	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	var output strings.Builder
	for time.Now().Before(deadline) {
		n, err := con.Read(buf)
		if n > 0 {
			output.Write(buf[:n])
		}
		if strings.Contains(output.String(), "ready") {
			break
		}
		if err != nil {
			break
		}
	}
	assert.Contains(t, output.String(), "ready")

	assert.NoError(t, d.Close())
}

func TestCommandDriverCloseBeforeActivate(t *testing.T) {
	d, err := NewCommandDriver([]string{"true"})
	require.NoError(t, err)
	assert.NoError(t, d.Close())
}
