package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saschahauer/barebox-bringup/pkg/config"
)

func TestNewDriverSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ConsoleConfig
		want interface{}
	}{
		{
			name: "serial",
			cfg:  config.ConsoleConfig{Type: "serial", Device: "/dev/ttyUSB0", Baud: 115200},
			want: &SerialDriver{},
		},
		{
			name: "command",
			cfg:  config.ConsoleConfig{Type: "command", Command: []string{"qemu-system-arm"}},
			want: &CommandDriver{},
		},
		{
			name: "websocket",
			cfg:  config.ConsoleConfig{Type: "websocket", URL: "ws://gw:8081/console"},
			want: &WebSocketDriver{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDriver(&tt.cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.want, d)
		})
	}
}

func TestNewDriverUnknownType(t *testing.T) {
	_, err := NewDriver(&config.ConsoleConfig{Type: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported console type")
}

func TestNewPowerSelection(t *testing.T) {
	p, err := NewPower(&config.PowerConfig{})
	require.NoError(t, err)
	assert.Nil(t, p, "no power section means no controller")

	p, err = NewPower(&config.PowerConfig{Type: "none"})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewPower(&config.PowerConfig{Type: "ipmi", Endpoint: "10.0.0.5"})
	require.NoError(t, err)
	assert.IsType(t, &IPMIPower{}, p)

	p, err = NewPower(&config.PowerConfig{
		Type: "command",
		On:   []string{"true"},
		Off:  []string{"true"},
	})
	require.NoError(t, err)
	assert.IsType(t, &CommandPower{}, p)

	_, err = NewPower(&config.PowerConfig{Type: "hamster-wheel"})
	assert.Error(t, err)
}
