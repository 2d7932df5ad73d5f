package dz60

import (
	"io"
	"runtime"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	DEFAULT_BAUD         = 57600
	DEFAULT_READ_TIMEOUT = time.Second
)

// DefaultPortName is the first built in serial port of the host OS
func DefaultPortName() string {
	if runtime.GOOS == "windows" {
		return "COM1"
	}
	return "/dev/ttyUSB0"
}

// Transport is the duplex byte link to the target. Read returns whatever
// arrived within the configured read timeout, 0 bytes when nothing did.
type Transport interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	// Break holds the line in break condition for d, which resets the
	// application on the target so the bootloader takes over.
	Break(d time.Duration) error
}

// OpenSerialPort opens name with 8N1 framing at baud and a one second read timeout.
func OpenSerialPort(name string, baud int) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, errors.Wrapf(ErrTransportUnavailable, "cannot open serial port %s: %v", name, err)
	}
	if err = port.SetReadTimeout(DEFAULT_READ_TIMEOUT); err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "cannot set read timeout on %s", name)
	}
	log.WithFields(log.Fields{"port": name, "baud": baud}).Debug("serial port opened")
	return port, nil
}

// ListSerialPorts returns the names of the serial ports present on the host
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// readFull collects up to n bytes from t. It stops early as soon as a Read
// returns nothing, which means the read timeout of the port expired.
func readFull(t Transport, n int) ([]byte, error) {
	res := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(res) < n {
		got, err := t.Read(buf[:n-len(res)])
		if got > 0 {
			res = append(res, buf[:got]...)
		}
		if err != nil {
			if err == io.EOF {
				return res, nil
			}
			return res, err
		}
		if got == 0 {
			break
		}
	}
	return res, nil
}
