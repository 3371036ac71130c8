package radio

import (
	"fmt"
	"time"

	"gobot.io/x/gobot/drivers/i2c"
)

// Bus executes one write-then-read transaction against the tuner chip.
// The protocol driver is the only caller; there is no reentrancy.
type Bus interface {
	// Transact writes cmd and reads back exactly respLen bytes, the
	// first of which is the chip status byte. A respLen of zero makes
	// the transaction write-only. Either the full response is returned
	// or an error; there are no partial results.
	Transact(cmd []byte, respLen int, timeout time.Duration) ([]byte, error)
}

// i2cBus adapts a gobot i2c connection to the Bus contract. The chip
// latches the last command and serves its response bytes on subsequent
// reads, so a transaction is one write followed by reads until the full
// response length arrives or the timeout passes.
type i2cBus struct {
	conn         i2c.Connection
	readInterval time.Duration
}

func newI2CBus(conn i2c.Connection, readInterval time.Duration) *i2cBus {
	if readInterval <= 0 {
		readInterval = time.Millisecond
	}
	return &i2cBus{conn: conn, readInterval: readInterval}
}

func (b *i2cBus) Transact(cmd []byte, respLen int, timeout time.Duration) ([]byte, error) {
	if _, err := b.conn.Write(cmd); err != nil {
		return nil, fmt.Errorf("%w: write 0x%02x: %v", ErrBusNack, cmd[0], err)
	}

	if respLen == 0 {
		return nil, nil
	}

	deadline := time.Now().Add(timeout)
	resp := make([]byte, respLen)
	for {
		n, err := b.conn.Read(resp)
		if err != nil {
			return nil, fmt.Errorf("%w: read after 0x%02x: %v", ErrBusNack, cmd[0], err)
		}
		if n == respLen {
			return resp, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: 0x%02x returned %d of %d bytes", ErrBusTimeout, cmd[0], n, respLen)
		}
		time.Sleep(b.readInterval)
	}
}
