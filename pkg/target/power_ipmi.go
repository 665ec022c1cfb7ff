package target

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/bougou/go-ipmi"
	"github.com/rs/zerolog/log"
)

const defaultIPMIPort = 623

// IPMIPower switches chassis power through the target's BMC over
// IPMI lanplus. Each operation opens a short-lived session; bringup runs
// power the target a handful of times at most, so there is nothing to keep
// alive between calls.
type IPMIPower struct {
	host     string
	port     int
	username string
	password string
}

// NewIPMIPower parses endpoint ("host" or "host:port") and prepares a
// controller.
func NewIPMIPower(endpoint, username, password string) (*IPMIPower, error) {
	host := endpoint
	port := defaultIPMIPort
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid IPMI port %q: %w", p, err)
		}
		host = h
		port = parsed
	}
	if host == "" {
		return nil, fmt.Errorf("IPMI endpoint requires a host")
	}
	return &IPMIPower{host: host, port: port, username: username, password: password}, nil
}

func (p *IPMIPower) PowerOn(ctx context.Context) error {
	return p.control(ctx, ipmi.ChassisControlPowerUp)
}

func (p *IPMIPower) PowerOff(ctx context.Context) error {
	return p.control(ctx, ipmi.ChassisControlPowerDown)
}

func (p *IPMIPower) PowerCycle(ctx context.Context) error {
	return p.control(ctx, ipmi.ChassisControlPowerCycle)
}

// PowerState queries the chassis status.
func (p *IPMIPower) PowerState(ctx context.Context) (string, error) {
	client, err := p.connect(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close(ctx)

	status, err := client.GetChassisStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("get chassis status: %w", err)
	}
	if status.PowerIsOn {
		return "on", nil
	}
	return "off", nil
}

func (p *IPMIPower) control(ctx context.Context, action ipmi.ChassisControl) error {
	client, err := p.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	if _, err := client.ChassisControl(ctx, action); err != nil {
		return fmt.Errorf("chassis control: %w", err)
	}
	log.Debug().Str("host", p.host).Uint8("action", uint8(action)).Msg("chassis control issued")
	return nil
}

func (p *IPMIPower) connect(ctx context.Context) (*ipmi.Client, error) {
	client, err := ipmi.NewClient(p.host, p.port, p.username, p.password)
	if err != nil {
		return nil, fmt.Errorf("ipmi client: %w", err)
	}
	client.WithInterface(ipmi.InterfaceLanplus)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to BMC %s: %w", p.host, err)
	}
	return client, nil
}
