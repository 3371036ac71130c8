package tuner

import (
	"errors"
	"fmt"

	"radiotuner/radio"
)

// Mode is the user-visible radio mode.
type Mode int

//goland:noinspection GoUnnecessarilyExportedIdentifiers
const (
	ModeOff Mode = iota
	ModeFM
	ModeAM
)

func (m Mode) String() string {
	switch m {
	case ModeFM:
		return "fm"
	case ModeAM:
		return "am"
	case ModeOff:
		return "off"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Validation errors: synchronous rejections issued before the driver is
// touched. They are reported to the command issuer directly and never
// reach the event hub.
var (
	// ErrBusy rejects a tune/seek/mode intent while another one is
	// outstanding. The in-flight operation is not disturbed.
	ErrBusy = errors.New("tuner busy")

	// ErrModeOff rejects tune/seek intents while the radio is off.
	ErrModeOff = errors.New("radio is off")

	// ErrOutOfRange rejects frequencies outside the active band's grid.
	ErrOutOfRange = errors.New("frequency out of range")
)

// VolumeOp selects a volume adjustment.
type VolumeOp int

//goland:noinspection GoUnnecessarilyExportedIdentifiers
const (
	VolumeSet VolumeOp = iota
	VolumeUp
	VolumeDown
	VolumeMute
	VolumeUnmute
)

// Intent is a validated user command, produced by the dispatcher and
// consumed by the state machine. Intents are transient; nothing stores
// them after handling.
type Intent interface {
	isIntent()
}

// SetMode switches the radio between off, FM and AM.
type SetMode struct {
	Mode Mode
}

// SetVolume adjusts the audio volume or mute state. Level is only used
// with VolumeSet and is clamped to [0,100].
type SetVolume struct {
	Op    VolumeOp
	Level int
}

// TuneFrequency retunes to an explicit frequency in human units:
// MHz on FM, kHz on AM. The state machine converts to chip-native
// units against the active band.
type TuneFrequency struct {
	Value float64
}

// Seek scans for the next valid station in the given direction.
type Seek struct {
	Direction radio.Direction
}

// StatusQuery requests a state snapshot; it never mutates anything.
type StatusQuery struct{}

func (SetMode) isIntent()       {}
func (SetVolume) isIntent()     {}
func (TuneFrequency) isIntent() {}
func (Seek) isIntent()          {}
func (StatusQuery) isIntent()   {}
