package radio

import "errors"

// Transport errors are local to a single bus transaction. The driver
// retries them up to a fixed bound before escalating to a protocol error.
var (
	// ErrBusTimeout means no full response arrived within the
	// transaction timeout.
	ErrBusTimeout = errors.New("bus timeout")

	// ErrBusNack means the bus signalled no acknowledgment.
	ErrBusNack = errors.New("bus nack")
)

// Protocol errors are terminal for the operation that produced them.
// The driver never retries a whole operation; the caller decides.
var (
	// ErrTimeout means the retry budget for a status poll was exhausted
	// without the chip raising the expected status bit.
	ErrTimeout = errors.New("chip timeout")

	// ErrUnresponsive means the chip answered with a wrong or absent
	// revision during power-up, or rejected a command outright.
	ErrUnresponsive = errors.New("chip unresponsive")

	// ErrUnsupported means the requested operation is not implemented
	// by the current hardware profile.
	ErrUnsupported = errors.New("operation unsupported")
)
