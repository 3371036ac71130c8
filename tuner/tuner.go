// Package tuner holds the radio state machine: the authoritative model
// of what the hardware should be in.
//
// A single goroutine owns the state and the driver. Intents arrive
// through Apply, which returns the validation verdict synchronously;
// accepted tune/seek/mode operations then run on a one-in-flight
// completion goroutine guarded by the busy flag, and their outcomes are
// published on the event hub once the chip responds. Because the busy
// flag prevents a second operation from starting, the driver (and so
// the bus) never sees concurrent access.
package tuner

import (
	"context"
	"fmt"
	"math"

	"radiotuner/events"
	"radiotuner/radio"
)

// State is the tuner snapshot. Frequency is in chip-native units for
// the current mode and is meaningless while the mode is off.
type State struct {
	Mode       Mode
	Frequency  uint16
	Volume     int
	Muted      bool
	Busy       bool
	LastStatus radio.StatusBits
}

// FormatFrequency renders f for human eyes in the units of mode.
func FormatFrequency(mode Mode, f uint16) string {
	switch mode {
	case ModeFM:
		return fmt.Sprintf("%.2f MHz", float64(f)/100)
	case ModeAM:
		return fmt.Sprintf("%d kHz", f)
	default:
		return "-"
	}
}

// Driver is the protocol driver surface the state machine needs. Status
// queries deliberately use the LastStatus snapshot rather than a live
// GetStatus read, so a status command cannot collide with an in-flight
// bus operation.
type Driver interface {
	PowerUp(band radio.Band) error
	PowerDown() error
	SetProperty(prop uint16, value uint16) error
	Tune(frequency uint16) error
	Seek(dir radio.Direction) (radio.SeekOutcome, error)
	LastStatus() radio.StatusBits
}

// Compile-time assertion that the Si4735 driver satisfies Driver.
var _ Driver = (*radio.Si4735Driver)(nil)

// Config carries the band plans and user-level defaults.
type Config struct {
	FM radio.Band
	AM radio.Band

	// FMDefault/AMDefault are where a band lands when it has no cached
	// frequency yet, in chip-native units. Zero means the band bottom.
	FMDefault uint16
	AMDefault uint16

	DefaultVolume int
	VolumeStep    int
}

const (
	defaultVolume     = 20
	defaultVolumeStep = 5
)

type request struct {
	intent Intent
	reply  chan error
}

type opKind int

const (
	opPowerUp opKind = iota
	opTune
	opSeek
)

type completion struct {
	op         opKind
	mode       Mode
	frequency  uint16
	outcome    radio.SeekOutcome
	err        error
	restoreErr error
}

// Machine runs the state machine. Create with New, then call Run on its
// own goroutine; Apply and Status are safe from any goroutine.
type Machine struct {
	drv  Driver
	hub  *events.Hub
	cfg  Config
	logf func(format string, v ...interface{})

	requests    chan request
	snaps       chan chan State
	completions chan completion

	state State
	cache map[Mode]uint16
}

// New creates a state machine in Off/idle with the configured default
// volume.
func New(drv Driver, hub *events.Hub, cfg Config, logf func(format string, v ...interface{})) *Machine {
	if cfg.DefaultVolume <= 0 {
		cfg.DefaultVolume = defaultVolume
	}
	if cfg.VolumeStep <= 0 {
		cfg.VolumeStep = defaultVolumeStep
	}
	if cfg.FMDefault == 0 {
		cfg.FMDefault = cfg.FM.Bottom
	}
	if cfg.AMDefault == 0 {
		cfg.AMDefault = cfg.AM.Bottom
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	return &Machine{
		drv:  drv,
		hub:  hub,
		cfg:  cfg,
		logf: logf,

		requests: make(chan request),
		snaps:    make(chan chan State),
		// Buffered so the in-flight operation goroutine can always
		// deliver its completion and exit, even during shutdown.
		completions: make(chan completion, 1),

		state: State{Mode: ModeOff, Volume: cfg.DefaultVolume},
		cache: make(map[Mode]uint16),
	}
}

// Apply submits an intent and returns its validation verdict. A nil
// return means the intent was accepted; for tune/seek/mode changes the
// outcome arrives later as an event.
func (m *Machine) Apply(ctx context.Context, in Intent) error {
	req := request{intent: in, reply: make(chan error, 1)}
	select {
	case m.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a state snapshot, including the driver's last polled
// status byte. It never touches the bus and never sets busy.
func (m *Machine) Status(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	select {
	case m.snaps <- reply:
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Run processes intents and completions until ctx is cancelled. All
// state mutation happens here, on this one goroutine.
func (m *Machine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.completions:
			m.finish(c)
		case reply := <-m.snaps:
			m.state.LastStatus = m.drv.LastStatus()
			reply <- m.state
		case req := <-m.requests:
			req.reply <- m.handle(req.intent)
		}
	}
}

func (m *Machine) handle(in Intent) error {
	switch in := in.(type) {
	case SetMode:
		return m.handleSetMode(in.Mode)
	case TuneFrequency:
		return m.handleTuneFrequency(in.Value)
	case Seek:
		return m.handleSeek(in.Direction)
	case SetVolume:
		return m.handleSetVolume(in)
	case StatusQuery:
		return nil
	default:
		return fmt.Errorf("unknown intent %T", in)
	}
}

func (m *Machine) handleSetMode(target Mode) error {
	if m.state.Busy {
		return ErrBusy
	}
	if target == m.state.Mode {
		return nil
	}

	if target == ModeOff {
		// Power-down completes locally: the chip sends no response,
		// so a bus hiccup here is logged, not surfaced.
		if err := m.drv.PowerDown(); err != nil {
			m.logf("[tuner] power down: %v", err)
		}
		m.state.Mode = ModeOff
		m.publish(events.Event{Type: events.ModeChanged, Mode: ModeOff.String()})
		return nil
	}

	band, fallback := m.bandFor(target)
	frequency, ok := m.cache[target]
	if !ok {
		frequency = fallback
	}
	volume := chipVolume(m.state.Volume)
	muted := m.state.Muted
	m.state.Busy = true
	go func() {
		// Power up, retune to where this band was left, then restore
		// the audio settings the chip forgot while powered down.
		err := m.drv.PowerUp(band)
		if err == nil {
			err = m.drv.Tune(frequency)
		}
		var restoreErr error
		if err == nil {
			restoreErr = m.restoreAudio(volume, muted)
		}
		m.completions <- completion{op: opPowerUp, mode: target, frequency: frequency, err: err, restoreErr: restoreErr}
	}()
	return nil
}

func (m *Machine) handleTuneFrequency(value float64) error {
	if m.state.Busy {
		return ErrBusy
	}
	if m.state.Mode == ModeOff {
		return ErrModeOff
	}

	band, _ := m.bandFor(m.state.Mode)
	native, err := nativeFrequency(m.state.Mode, value)
	if err != nil {
		return err
	}
	if !band.Contains(native) {
		return fmt.Errorf("%s not within %s-%s: %w",
			FormatFrequency(m.state.Mode, native),
			FormatFrequency(m.state.Mode, band.Bottom),
			FormatFrequency(m.state.Mode, band.Top),
			ErrOutOfRange)
	}

	m.state.Busy = true
	go func() {
		err := m.drv.Tune(native)
		m.completions <- completion{op: opTune, frequency: native, err: err}
	}()
	return nil
}

func (m *Machine) handleSeek(dir radio.Direction) error {
	if m.state.Busy {
		return ErrBusy
	}
	if m.state.Mode == ModeOff {
		return ErrModeOff
	}

	m.state.Busy = true
	go func() {
		outcome, err := m.drv.Seek(dir)
		m.completions <- completion{op: opSeek, outcome: outcome, err: err}
	}()
	return nil
}

// handleSetVolume never rejects for busy: volume is a cached user
// preference that stays meaningful while the chip is powered down. The
// chip write is best-effort and only attempted when it cannot collide
// with an in-flight bus operation.
func (m *Machine) handleSetVolume(in SetVolume) error {
	switch in.Op {
	case VolumeSet:
		m.state.Volume = clampVolume(in.Level)
	case VolumeUp:
		m.state.Volume = clampVolume(m.state.Volume + m.cfg.VolumeStep)
	case VolumeDown:
		m.state.Volume = clampVolume(m.state.Volume - m.cfg.VolumeStep)
	case VolumeMute:
		m.state.Muted = true
	case VolumeUnmute:
		m.state.Muted = false
	}

	m.publish(events.Event{
		Type:   events.VolumeChanged,
		Mode:   m.state.Mode.String(),
		Volume: m.state.Volume,
		Muted:  m.state.Muted,
	})

	if m.state.Mode != ModeOff && !m.state.Busy {
		if err := m.restoreAudio(chipVolume(m.state.Volume), m.state.Muted); err != nil {
			// The cached value stands regardless.
			m.publishError(err)
		}
	}
	return nil
}

// finish applies a completed driver operation. Busy clears no matter
// how the operation ended, so a stalled chip cannot wedge the CLI.
func (m *Machine) finish(c completion) {
	m.state.Busy = false
	m.state.LastStatus = m.drv.LastStatus()

	switch c.op {
	case opPowerUp:
		if c.err != nil {
			m.publishError(c.err)
			return
		}
		m.state.Mode = c.mode
		m.state.Frequency = c.frequency
		m.cache[c.mode] = c.frequency
		m.publish(events.Event{
			Type:      events.ModeChanged,
			Mode:      c.mode.String(),
			Frequency: c.frequency,
			Volume:    m.state.Volume,
		})
		if c.restoreErr != nil {
			m.publishError(c.restoreErr)
		}

	case opTune:
		if c.err != nil {
			m.publishError(c.err)
			return
		}
		m.state.Frequency = c.frequency
		m.cache[m.state.Mode] = c.frequency
		m.publish(events.Event{
			Type:      events.FrequencyChanged,
			Mode:      m.state.Mode.String(),
			Frequency: c.frequency,
		})

	case opSeek:
		if c.err != nil {
			m.publishError(c.err)
			return
		}
		m.state.Frequency = c.outcome.Frequency
		m.cache[m.state.Mode] = c.outcome.Frequency
		m.publish(events.Event{
			Type:      events.SeekResult,
			Mode:      m.state.Mode.String(),
			Frequency: c.outcome.Frequency,
			Found:     c.outcome.Found,
		})
	}
}

// restoreAudio pushes the cached volume and mute state to the chip.
// Runs either on the executor goroutine while idle or on the power-up
// operation goroutine while busy, never both.
func (m *Machine) restoreAudio(volume uint16, muted bool) error {
	if err := m.drv.SetProperty(radio.PROP_RX_VOLUME, volume); err != nil {
		return err
	}
	var muteVal uint16
	if muted {
		muteVal = radio.RX_HARD_MUTE_BOTH
	}
	return m.drv.SetProperty(radio.PROP_RX_HARD_MUTE, muteVal)
}

func (m *Machine) bandFor(mode Mode) (radio.Band, uint16) {
	if mode == ModeAM {
		return m.cfg.AM, m.cfg.AMDefault
	}
	return m.cfg.FM, m.cfg.FMDefault
}

func (m *Machine) publish(ev events.Event) {
	if m.hub != nil {
		m.hub.Publish(ev)
	}
}

func (m *Machine) publishError(err error) {
	m.logf("[tuner] %v", err)
	m.publish(events.Event{
		Type: events.OperationError,
		Mode: m.state.Mode.String(),
		Err:  err.Error(),
	})
}

// nativeFrequency converts a human-units frequency to chip-native
// units: MHz to 10 kHz steps on FM, kHz as-is on AM.
func nativeFrequency(mode Mode, value float64) (uint16, error) {
	var scaled float64
	switch mode {
	case ModeFM:
		scaled = math.Round(value * 100)
	case ModeAM:
		scaled = math.Round(value)
	default:
		return 0, ErrModeOff
	}
	if scaled < 0 || scaled > math.MaxUint16 {
		return 0, fmt.Errorf("%v: %w", value, ErrOutOfRange)
	}
	return uint16(scaled), nil
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func chipVolume(v int) uint16 {
	return uint16(v * radio.RX_VOLUME_MAX / 100)
}
