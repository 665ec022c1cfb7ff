package target

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/saschahauer/barebox-bringup/pkg/console"
)

// SerialDriver attaches to a local serial device such as /dev/ttyUSB0 and
// configures the line raw 8N1 at the requested baud rate.
type SerialDriver struct {
	device string
	baud   int
	file   *os.File
}

// NewSerialDriver prepares a driver for the given device. A zero baud rate
// selects 115200.
func NewSerialDriver(device string, baud int) *SerialDriver {
	if baud == 0 {
		baud = 115200
	}
	return &SerialDriver{device: device, baud: baud}
}

// Activate opens and configures the device.
func (d *SerialDriver) Activate(ctx context.Context) error {
	f, err := os.OpenFile(d.device, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return fmt.Errorf("open serial device: %w", err)
	}
	if err := configureSerial(int(f.Fd()), d.baud); err != nil {
		f.Close()
		return fmt.Errorf("configure %s: %w", d.device, err)
	}
	d.file = f
	log.Debug().Str("device", d.device).Int("baud", d.baud).Msg("serial console activated")
	return nil
}

func (d *SerialDriver) Console() console.Console {
	return d.file
}

func (d *SerialDriver) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// configureSerial puts the line in raw 8N1 mode at the given speed. Raw
// mode matters on both ends: the tty layer must not translate line endings
// or interpret control bytes coming from the target.
func configureSerial(fd, baud int) error {
	speed, err := baudConstant(baud)
	if err != nil {
		return err
	}

	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
	tio.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	tio.Ispeed = speed
	tio.Ospeed = speed
	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

func baudConstant(baud int) (uint32, error) {
	switch baud {
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 921600:
		return unix.B921600, nil
	default:
		return 0, fmt.Errorf("unsupported baud rate %d", baud)
	}
}
