package target

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// CommandPower switches power through operator-supplied commands: an
// sd-mux utility, a PDU CLI, a relay board script. The commands are run
// as given, argv style, without shell interpretation.
type CommandPower struct {
	on     []string
	off    []string
	settle time.Duration
}

// NewCommandPower prepares a controller from the on/off invocations.
func NewCommandPower(on, off []string) (*CommandPower, error) {
	if len(on) == 0 || len(off) == 0 {
		return nil, fmt.Errorf("command power requires both on and off commands")
	}
	return &CommandPower{on: on, off: off, settle: time.Second}, nil
}

func (p *CommandPower) PowerOn(ctx context.Context) error {
	return p.run(ctx, p.on)
}

func (p *CommandPower) PowerOff(ctx context.Context) error {
	return p.run(ctx, p.off)
}

// PowerCycle switches off, lets the supply settle, and switches on again.
func (p *CommandPower) PowerCycle(ctx context.Context) error {
	if err := p.run(ctx, p.off); err != nil {
		return err
	}
	select {
	case <-time.After(p.settle):
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.run(ctx, p.on)
}

// PowerState reports "unknown": switching utilities generally cannot read
// back the supply state.
func (p *CommandPower) PowerState(ctx context.Context) (string, error) {
	return "unknown", nil
}

func (p *CommandPower) run(ctx context.Context, argv []string) error {
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug().Strs("argv", argv).Msg("running power command")

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("power command %s failed: %w: %s", argv[0], err, detail)
		}
		return fmt.Errorf("power command %s failed: %w", argv[0], err)
	}
	return nil
}
