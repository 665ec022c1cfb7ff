// Package target activates targets and produces their console streams.
//
// A Driver owns the transport to the target's text console (a local serial
// device, an emulator started under a PTY, or a remote WebSocket endpoint)
// and hands the session multiplexer a duplex byte stream. A
// PowerController switches target power independently of the console, so
// the console can be attached before the target boots and no early output
// is lost.
package target

import (
	"context"
	"fmt"

	"github.com/saschahauer/barebox-bringup/pkg/config"
	"github.com/saschahauer/barebox-bringup/pkg/console"
)

// Driver prepares a target console for a session. Activate must complete
// before Console is used. Close releases the transport; the session
// multiplexer itself never closes the console it was handed.
type Driver interface {
	Activate(ctx context.Context) error
	Console() console.Console
	Close() error
}

// PowerController switches target power through a BMC or an external
// switching utility.
type PowerController interface {
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
	PowerCycle(ctx context.Context) error
	PowerState(ctx context.Context) (string, error)
}

// NewDriver builds the console driver selected by the configuration.
func NewDriver(cfg *config.ConsoleConfig) (Driver, error) {
	switch cfg.Type {
	case "serial":
		return NewSerialDriver(cfg.Device, cfg.Baud), nil
	case "command":
		return NewCommandDriver(cfg.Command)
	case "websocket":
		return NewWebSocketDriver(cfg.URL, cfg.Username, cfg.Password), nil
	default:
		return nil, fmt.Errorf("unsupported console type %q", cfg.Type)
	}
}

// NewPower builds the power controller selected by the configuration.
// It returns nil for targets without power control.
func NewPower(cfg *config.PowerConfig) (PowerController, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "ipmi":
		return NewIPMIPower(cfg.Endpoint, cfg.Username, cfg.Password)
	case "command":
		return NewCommandPower(cfg.On, cfg.Off)
	default:
		return nil, fmt.Errorf("unsupported power type %q", cfg.Type)
	}
}
