// Package radio implements the protocol driver for the Silicon Labs
// Si4735 FM/AM receiver, as found on the common breakout boards.
//
// The chip speaks a command/response protocol over I2C: each command is a
// command byte plus argument bytes, and every response starts with a status
// byte whose CTS bit signals readiness for the next command. Tune and seek
// complete asynchronously via the STC status bit, which the driver turns
// into bounded poll loops so callers see one synchronous result per
// operation.
//
// To read about the chip protocol, see the following documents:
// https://www.silabs.com/documents/public/data-sheets/Si4734-35-D60.pdf
// https://www.silabs.com/documents/public/application-notes/AN332.pdf
package radio

import (
	"fmt"
	"sync/atomic"
	"time"

	"gobot.io/x/gobot"
	"gobot.io/x/gobot/drivers/gpio"
	"gobot.io/x/gobot/drivers/i2c"
)

const (
	low  = 0x0
	high = 0x1
)

// Direction selects which way a seek walks the band.
type Direction int

//goland:noinspection GoUnnecessarilyExportedIdentifiers
const (
	SeekUp Direction = iota
	SeekDown
)

func (d Direction) String() string {
	if d == SeekDown {
		return "down"
	}
	return "up"
}

// Band describes one receive band in chip-native frequency units:
// 10 kHz steps for FM, 1 kHz steps for AM.
type Band struct {
	Name       string
	Function   byte // POWER_UP_FUNC_FM or POWER_UP_FUNC_AM
	Bottom     uint16
	Top        uint16
	Spacing    uint16
	Deemphasis uint16
}

// Contains reports whether f lies on the band's grid.
func (b Band) Contains(f uint16) bool {
	if f < b.Bottom || f > b.Top {
		return false
	}
	return b.Spacing == 0 || (f-b.Bottom)%b.Spacing == 0
}

// StatusBits is a snapshot of the chip status byte.
type StatusBits byte

//goland:noinspection GoUnnecessarilyExportedIdentifiers
func (s StatusBits) CTS() bool { return s&STATUS_CTS != 0 }

// Err reports whether the chip rejected the last command.
func (s StatusBits) Err() bool { return s&STATUS_ERR != 0 }

// SeekTuneComplete reports whether a tune or seek has finished.
func (s StatusBits) SeekTuneComplete() bool { return s&STATUS_STCINT != 0 }

func (s StatusBits) String() string {
	return fmt.Sprintf("0x%02x", byte(s))
}

// SeekOutcome is the result of a completed seek.
type SeekOutcome struct {
	// Found is false when the seek wrapped the whole band without
	// finding a valid station.
	Found     bool
	Frequency uint16
	RSSI      uint8
	SNR       uint8
}

// Revision identifies the chip firmware, read back after power-up.
type Revision struct {
	PartNumber uint8
	Firmware   uint16
	Patch      uint16
	Component  uint16
	ChipRev    uint8
}

func (r Revision) String() string {
	return fmt.Sprintf("Si47%d fw=%04x patch=%04x cmp=%04x rev=%d",
		r.PartNumber, r.Firmware, r.Patch, r.Component, r.ChipRev)
}

// Timing bounds every bus transaction and status poll. The defaults
// follow the chip's documented command latencies: CTS comes up within a
// few hundred microseconds for most commands, while a seek can sweep the
// whole band and take seconds.
type Timing struct {
	// TransactionTimeout bounds a single bus write-then-read.
	TransactionTimeout time.Duration

	// PollInterval is the wait between status polls.
	PollInterval time.Duration

	// TransportRetries is how many transport failures a poll tolerates
	// before the operation fails with ErrTimeout.
	TransportRetries int

	// CTSAttempts bounds the clear-to-send poll after a command.
	CTSAttempts int

	// STCAttempts bounds the seek/tune-complete poll.
	STCAttempts int
}

func defaultTiming() Timing {
	return Timing{
		TransactionTimeout: 100 * time.Millisecond,
		PollInterval:       10 * time.Millisecond,
		TransportRetries:   3,
		CTSAttempts:        3,
		STCAttempts:        500,
	}
}

// Si4735Driver drives the receiver over I2C with a GPIO reset line.
// It owns the bus exclusively: all chip access in the process goes
// through this driver, one operation at a time.
//
//goland:noinspection GoUnnecessarilyExportedIdentifiers
type Si4735Driver struct {
	name     string
	resetPin string

	i2cAddr      int
	conn         i2c.Connection
	i2cConnector i2c.Connector
	i2c.Config

	bus    Bus
	timing Timing

	debugMode bool
	debugLog  func(format string, v ...interface{})
	log       func(format string, v ...interface{})

	// function is the receive function selected by the last power-up,
	// or functionNone while the chip is powered down.
	function byte

	// lastStatus is the most recent status byte seen on the bus. Atomic
	// because status queries read it from another goroutine while an
	// operation is polling.
	lastStatus atomic.Uint32

	// seekDownSupported gates Seek(SeekDown) for the current hardware
	// profile. The board in use mutes badly when walking down, so the
	// profile leaves it off until that is resolved.
	seekDownSupported bool
}

const functionNone = 0xFF

// Si4735Config holds the additional configuration needed for Si4735Driver.
type Si4735Config struct {
	I2CAddress int
	ResetPin   string
	Timing     Timing

	// SeekDownSupported belongs to the hardware profile, not user
	// preference; leave it false unless the board handles downward
	// seeks correctly.
	SeekDownSupported bool

	DebugMode bool
	DebugLog  func(format string, v ...interface{})
	Log       func(format string, v ...interface{})
}

// Validate fills defaults and ensures the configuration is usable.
//
//noinspection GoUnnecessarilyExportedIdentifiers
func (c *Si4735Config) Validate() error {
	if c.Log == nil {
		panic("logging function cannot be nil. Use something like log.Printf or an empty function instead")
	}
	if c.DebugMode && c.DebugLog == nil {
		panic("cannot use debugging mode without configuring a DebugLog function, e.g. log.Printf")
	}

	if c.I2CAddress == 0 {
		c.I2CAddress = Address
	}
	if c.ResetPin == "" {
		c.ResetPin = "29"
	}

	def := defaultTiming()
	if c.Timing.TransactionTimeout <= 0 {
		c.Timing.TransactionTimeout = def.TransactionTimeout
	}
	if c.Timing.PollInterval <= 0 {
		c.Timing.PollInterval = def.PollInterval
	}
	if c.Timing.TransportRetries <= 0 {
		c.Timing.TransportRetries = def.TransportRetries
	}
	if c.Timing.CTSAttempts <= 0 {
		c.Timing.CTSAttempts = def.CTSAttempts
	}
	if c.Timing.STCAttempts <= 0 {
		c.Timing.STCAttempts = def.STCAttempts
	}

	return nil
}

// NewSi4735Driver creates a new GoBot driver for the receiver.
func NewSi4735Driver(connector i2c.Connector, cfg Si4735Config, options ...func(i2c.Config)) (*Si4735Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := &Si4735Driver{
		name:         gobot.DefaultName("Si4735Driver"),
		i2cConnector: connector,
		Config:       i2c.NewConfig(),
		i2cAddr:      cfg.I2CAddress,
		resetPin:     cfg.ResetPin,
		timing:       cfg.Timing,
		debugMode:    cfg.DebugMode,
		debugLog:     cfg.DebugLog,
		log:          cfg.Log,
		function:     functionNone,

		seekDownSupported: cfg.SeekDownSupported,
	}

	for _, option := range options {
		option(res)
	}

	return res, nil
}

// Name of our device.
func (s *Si4735Driver) Name() string {
	return s.name
}

// SetName set the name of our device.
func (s *Si4735Driver) SetName(name string) {
	s.name = name
}

// Start acquires the bus connection. The chip stays powered down until
// PowerUp is called; band selection is the state machine's decision.
func (s *Si4735Driver) Start() error {
	bus := s.GetBusOrDefault(s.i2cConnector.GetDefaultBus())
	var err error
	s.conn, err = s.i2cConnector.GetConnection(s.i2cAddr, bus)
	if err != nil {
		return err
	}
	s.bus = newI2CBus(s.conn, s.timing.PollInterval/4)
	return nil
}

// Halt powers the chip down in a graceful way.
func (s *Si4735Driver) Halt() error {
	if s.function == functionNone {
		return nil
	}
	return s.PowerDown()
}

// Connection retrieves the i2c connection to the device.
func (s *Si4735Driver) Connection() gobot.Connection {
	return s.i2cConnector.(gobot.Connection)
}

// LastStatus returns the most recent status byte without a bus access.
func (s *Si4735Driver) LastStatus() StatusBits {
	return StatusBits(s.lastStatus.Load())
}

// Resets the chip via the reset line, with hold times per the datasheet
// power-up sequence.
func (s *Si4735Driver) reset() (err error) {
	dw, ok := s.i2cConnector.(gpio.DigitalWriter)
	if !ok {
		return fmt.Errorf("i2c connector does not have a digital writer capability")
	}

	if err = dw.DigitalWrite(s.resetPin, high); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)

	if err = dw.DigitalWrite(s.resetPin, low); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)

	return dw.DigitalWrite(s.resetPin, high)
}

// PowerUp resets the chip, boots the receive function for the given
// band, verifies the firmware revision and programs the band edges.
// A chip that reports the wrong part number is ErrUnresponsive; chip
// state is undefined afterwards and the caller decides whether to retry
// the whole sequence.
func (s *Si4735Driver) PowerUp(band Band) error {
	if err := s.reset(); err != nil {
		return err
	}

	arg1 := POWER_UP_XOSCEN | band.Function
	if _, err := s.sendCommand([]byte{CMD_POWER_UP, arg1, POWER_UP_OPMODE_ANALOG}, 1); err != nil {
		return fmt.Errorf("power up: %w", err)
	}
	if _, err := s.pollStatus(STATUS_CTS, s.timing.CTSAttempts); err != nil {
		return fmt.Errorf("power up: %w", err)
	}

	rev, err := s.GetRevision()
	if err != nil {
		return fmt.Errorf("power up: %w", err)
	}
	if rev.PartNumber != partNumberSi4735 {
		return fmt.Errorf("unexpected part number %d: %w", rev.PartNumber, ErrUnresponsive)
	}
	if s.debugMode {
		s.debugLog("powered up %s: %s\n", band.Name, rev)
	}

	s.function = band.Function

	for _, p := range s.bandProperties(band) {
		if err := s.SetProperty(p.id, p.value); err != nil {
			s.function = functionNone
			return fmt.Errorf("band setup 0x%04x: %w", p.id, err)
		}
	}
	return nil
}

type property struct {
	id    uint16
	value uint16
}

// bandProperties lists the seek window and de-emphasis writes for a band.
func (s *Si4735Driver) bandProperties(band Band) []property {
	if band.Function == POWER_UP_FUNC_AM {
		return []property{
			{PROP_AM_SEEK_BAND_BOTTOM, band.Bottom},
			{PROP_AM_SEEK_BAND_TOP, band.Top},
			{PROP_AM_SEEK_FREQ_SPACING, band.Spacing},
			{PROP_AM_DEEMPHASIS, band.Deemphasis},
		}
	}
	return []property{
		{PROP_FM_SEEK_BAND_BOTTOM, band.Bottom},
		{PROP_FM_SEEK_BAND_TOP, band.Top},
		{PROP_FM_SEEK_FREQ_SPACING, band.Spacing},
		{PROP_FM_DEEMPHASIS, band.Deemphasis},
	}
}

// PowerDown turns the receiver off. The chip sends no response to this
// command, so there is no CTS wait and no completion to poll.
func (s *Si4735Driver) PowerDown() error {
	s.function = functionNone
	if _, err := s.bus.Transact([]byte{CMD_POWER_DOWN, 0}, 0, s.timing.TransactionTimeout); err != nil {
		return fmt.Errorf("power down: %w", ErrTimeout)
	}
	return nil
}

// SetProperty writes a chip property and waits for clear-to-send.
func (s *Si4735Driver) SetProperty(prop uint16, value uint16) error {
	if s.debugMode {
		s.debugLog("set prop 0x%04x = 0x%04x (%d)\n", prop, value, value)
	}

	cmd := []byte{
		CMD_SET_PROPERTY,
		0,
		uint8(prop >> 8),
		uint8(prop & 0xFF),
		uint8(value >> 8),
		uint8(value & 0xFF),
	}
	if _, err := s.sendCommand(cmd, 1); err != nil {
		return fmt.Errorf("set property 0x%04x: %w", prop, err)
	}
	if _, err := s.pollStatus(STATUS_CTS, s.timing.CTSAttempts); err != nil {
		return fmt.Errorf("set property 0x%04x: %w", prop, err)
	}
	return nil
}

// Tune retunes the receiver to freq in chip-native units and waits for
// the seek/tune-complete bit. The caller validates band bounds.
func (s *Si4735Driver) Tune(freq uint16) error {
	var cmd []byte
	switch s.function {
	case POWER_UP_FUNC_FM:
		cmd = []byte{CMD_FM_TUNE_FREQ, 0, uint8(freq >> 8), uint8(freq & 0xFF), 0}
	case POWER_UP_FUNC_AM:
		cmd = []byte{CMD_AM_TUNE_FREQ, 0, uint8(freq >> 8), uint8(freq & 0xFF), 0, 0}
	default:
		return fmt.Errorf("tune while powered down: %w", ErrUnsupported)
	}

	if _, err := s.sendCommand(cmd, 1); err != nil {
		return fmt.Errorf("tune %d: %w", freq, err)
	}
	if _, err := s.pollStatus(STATUS_STCINT, s.timing.STCAttempts); err != nil {
		return fmt.Errorf("tune %d: %w", freq, err)
	}

	// Acknowledge STC so the next tune/seek starts clean.
	if _, err := s.readTuneStatus(); err != nil {
		return fmt.Errorf("tune %d: %w", freq, err)
	}
	return nil
}

// Seek scans for the next valid station in the given direction, wrapping
// at the band edges, and reports where the chip landed. Seek down is not
// implemented by the current hardware profile and fails with
// ErrUnsupported before touching the bus.
func (s *Si4735Driver) Seek(dir Direction) (SeekOutcome, error) {
	if dir == SeekDown && !s.seekDownSupported {
		return SeekOutcome{}, fmt.Errorf("seek down: %w", ErrUnsupported)
	}

	arg1 := byte(SEEK_START_WRAP)
	if dir == SeekUp {
		arg1 |= SEEK_START_UP
	}

	var cmd []byte
	switch s.function {
	case POWER_UP_FUNC_FM:
		cmd = []byte{CMD_FM_SEEK_START, arg1}
	case POWER_UP_FUNC_AM:
		cmd = []byte{CMD_AM_SEEK_START, arg1, 0, 0, 0, 0}
	default:
		return SeekOutcome{}, fmt.Errorf("seek while powered down: %w", ErrUnsupported)
	}

	if _, err := s.sendCommand(cmd, 1); err != nil {
		return SeekOutcome{}, fmt.Errorf("seek %s: %w", dir, err)
	}
	if _, err := s.pollStatus(STATUS_STCINT, s.timing.STCAttempts); err != nil {
		return SeekOutcome{}, fmt.Errorf("seek %s: %w", dir, err)
	}

	ts, err := s.readTuneStatus()
	if err != nil {
		return SeekOutcome{}, fmt.Errorf("seek %s: %w", dir, err)
	}
	return SeekOutcome{
		// A wrapped seek that found nothing lands with BLTF set and
		// the valid flag clear.
		Found:     ts.valid && !ts.bandLimit,
		Frequency: ts.frequency,
		RSSI:      ts.rssi,
		SNR:       ts.snr,
	}, nil
}

type tuneStatus struct {
	valid     bool
	bandLimit bool
	frequency uint16
	rssi      uint8
	snr       uint8
}

// Queries the result of a previously issued tune or seek and clears the
// seek/tune-complete bit.
func (s *Si4735Driver) readTuneStatus() (tuneStatus, error) {
	cmdByte := byte(CMD_FM_TUNE_STATUS)
	if s.function == POWER_UP_FUNC_AM {
		cmdByte = CMD_AM_TUNE_STATUS
	}

	resp, err := s.sendCommand([]byte{cmdByte, TUNE_STATUS_INTACK}, 8)
	if err != nil {
		return tuneStatus{}, err
	}

	ts := tuneStatus{
		valid:     resp[1]&TUNE_STATUS_VALID != 0,
		bandLimit: resp[1]&TUNE_STATUS_BLTF != 0,
		frequency: uint16(resp[2])<<8 | uint16(resp[3]),
		rssi:      resp[4],
		snr:       resp[5],
	}
	if s.debugMode {
		s.debugLog("tune status: valid=%t bltf=%t freq=%d rssi=%d snr=%d\n",
			ts.valid, ts.bandLimit, ts.frequency, ts.rssi, ts.snr)
	}
	return ts, nil
}

// GetStatus reads the status byte in a single transaction.
func (s *Si4735Driver) GetStatus() (StatusBits, error) {
	resp, err := s.sendCommand([]byte{CMD_GET_INT_STATUS}, 1)
	if err != nil {
		return 0, err
	}
	return StatusBits(resp[0]), nil
}

// GetRevision reads the part number and firmware revision.
func (s *Si4735Driver) GetRevision() (Revision, error) {
	resp, err := s.sendCommand([]byte{CMD_GET_REV}, 9)
	if err != nil {
		return Revision{}, err
	}

	return Revision{
		PartNumber: resp[1],
		Firmware:   uint16(resp[2])<<8 | uint16(resp[3]),
		Patch:      uint16(resp[4])<<8 | uint16(resp[5]),
		Component:  uint16(resp[6])<<8 | uint16(resp[7]),
		ChipRev:    resp[8],
	}, nil
}

// sendCommand runs one transaction, retrying transport failures up to
// the configured bound. Exhaustion maps to ErrTimeout; the chip's ERR
// bit maps to ErrUnresponsive.
func (s *Si4735Driver) sendCommand(cmd []byte, respLen int) ([]byte, error) {
	if s.debugMode {
		s.debugLog("*** command: % x\n", cmd)
	}

	var lastErr error
	for attempt := 0; attempt <= s.timing.TransportRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.timing.PollInterval)
		}
		resp, err := s.bus.Transact(cmd, respLen, s.timing.TransactionTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		s.lastStatus.Store(uint32(resp[0]))
		if resp[0]&STATUS_ERR != 0 {
			return nil, fmt.Errorf("command 0x%02x rejected: %w", cmd[0], ErrUnresponsive)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("command 0x%02x: %v: %w", cmd[0], lastErr, ErrTimeout)
}

// pollStatus reads the status byte until the given bit comes up, a
// bounded number of times, spaced by the poll interval. Transport
// failures share the retry budget.
func (s *Si4735Driver) pollStatus(mask byte, attempts int) (StatusBits, error) {
	transportFailures := 0
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(s.timing.PollInterval)
		}
		resp, err := s.bus.Transact([]byte{CMD_GET_INT_STATUS}, 1, s.timing.TransactionTimeout)
		if err != nil {
			transportFailures++
			if transportFailures > s.timing.TransportRetries {
				return 0, fmt.Errorf("status poll: %v: %w", err, ErrTimeout)
			}
			continue
		}
		st := StatusBits(resp[0])
		s.lastStatus.Store(uint32(st))
		if byte(st)&mask != 0 {
			return st, nil
		}
	}
	return 0, fmt.Errorf("status bit 0x%02x never raised: %w", mask, ErrTimeout)
}
