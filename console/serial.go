package console

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the firmware console on the other end of the
// cable.
const DefaultBaudRate = 115200

// OpenSerial opens the named serial port in 8N1 at the given baud rate
// for use as the console stream. A baud of 0 selects DefaultBaudRate.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	return p, nil
}
