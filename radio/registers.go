package radio

// The Si4735 command and property numbering below follows the chip's
// programming guide (AN332) and must stay bit-exact: the same binary
// encoding is what the hardware parses.

// Misc constants.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// Address is the device default address if SEN is low.
	Address = 0x11

	// AlternativeAddress if SEN is high.
	AlternativeAddress = 0x63
)

// Command identifiers the receiver supports.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// CMD_POWER_UP boots the device and selects the receive function
	// (FM or AM) plus the audio output mode.
	CMD_POWER_UP = 0x01

	// CMD_GET_REV returns part number and firmware revision information.
	CMD_GET_REV = 0x10

	// CMD_POWER_DOWN powers the device down. The chip stops responding
	// on the bus until the next power-up, so no response is expected.
	CMD_POWER_DOWN = 0x11

	// CMD_SET_PROPERTY sets the value of a property.
	CMD_SET_PROPERTY = 0x12

	// CMD_GET_PROPERTY retrieves a property's value.
	CMD_GET_PROPERTY = 0x13

	// CMD_GET_INT_STATUS reads the status byte without side effects.
	CMD_GET_INT_STATUS = 0x14

	// CMD_FM_TUNE_FREQ tunes to the given FM frequency (10 kHz units).
	CMD_FM_TUNE_FREQ = 0x20

	// CMD_FM_SEEK_START begins an FM seek in the given direction.
	CMD_FM_SEEK_START = 0x21

	// CMD_FM_TUNE_STATUS queries (and acknowledges) the result of a
	// previous FM tune or seek.
	CMD_FM_TUNE_STATUS = 0x22

	// CMD_FM_RSQ_STATUS queries FM received signal quality metrics.
	CMD_FM_RSQ_STATUS = 0x23

	// CMD_AM_TUNE_FREQ tunes to the given AM frequency (kHz).
	CMD_AM_TUNE_FREQ = 0x40

	// CMD_AM_SEEK_START begins an AM seek in the given direction.
	CMD_AM_SEEK_START = 0x41

	// CMD_AM_TUNE_STATUS queries (and acknowledges) the result of a
	// previous AM tune or seek.
	CMD_AM_TUNE_STATUS = 0x42
)

// Status byte bits. The first byte of every response carries these.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// STATUS_CTS indicates the chip is clear to accept the next command.
	STATUS_CTS = 0x80

	// STATUS_ERR indicates the last command was rejected.
	STATUS_ERR = 0x40

	// STATUS_STCINT indicates a tune or seek operation has completed.
	STATUS_STCINT = 0x01
)

// POWER_UP argument bits.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// POWER_UP_FUNC_FM selects the FM receive function.
	POWER_UP_FUNC_FM = 0x00

	// POWER_UP_FUNC_AM selects the AM receive function.
	POWER_UP_FUNC_AM = 0x01

	// POWER_UP_XOSCEN enables the crystal oscillator.
	POWER_UP_XOSCEN = 0x10

	// POWER_UP_OPMODE_ANALOG selects analog audio output (LOUT/ROUT).
	POWER_UP_OPMODE_ANALOG = 0x05
)

// SEEK_START argument bits.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// SEEK_START_UP seeks toward higher frequencies; cleared it seeks down.
	SEEK_START_UP = 0x08

	// SEEK_START_WRAP wraps around the band edge instead of stopping.
	SEEK_START_WRAP = 0x04
)

// TUNE_STATUS argument and response bits.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// TUNE_STATUS_INTACK clears the seek/tune-complete status bit.
	TUNE_STATUS_INTACK = 0x01

	// TUNE_STATUS_VALID flags a valid station in RESP1.
	TUNE_STATUS_VALID = 0x01

	// TUNE_STATUS_BLTF flags that a seek hit the band limit in RESP1.
	TUNE_STATUS_BLTF = 0x80
)

// Receiver properties.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// PROP_GPO_IEN enables interrupt sources. Default is all disabled.
	PROP_GPO_IEN = 0x0001

	// PROP_FM_DEEMPHASIS selects the FM de-emphasis time constant.
	// 0x02 is 75 us (USA standard).
	PROP_FM_DEEMPHASIS = 0x1100

	// PROP_FM_SEEK_BAND_BOTTOM sets the lower FM seek limit in 10 kHz units.
	PROP_FM_SEEK_BAND_BOTTOM = 0x1400

	// PROP_FM_SEEK_BAND_TOP sets the upper FM seek limit in 10 kHz units.
	PROP_FM_SEEK_BAND_TOP = 0x1401

	// PROP_FM_SEEK_FREQ_SPACING sets the FM seek step in 10 kHz units.
	PROP_FM_SEEK_FREQ_SPACING = 0x1402

	// PROP_AM_DEEMPHASIS selects the AM de-emphasis. 0x01 is 50 us.
	PROP_AM_DEEMPHASIS = 0x3100

	// PROP_AM_SEEK_BAND_BOTTOM sets the lower AM seek limit in kHz.
	PROP_AM_SEEK_BAND_BOTTOM = 0x3400

	// PROP_AM_SEEK_BAND_TOP sets the upper AM seek limit in kHz.
	PROP_AM_SEEK_BAND_TOP = 0x3401

	// PROP_AM_SEEK_FREQ_SPACING sets the AM seek step in kHz.
	PROP_AM_SEEK_FREQ_SPACING = 0x3402

	// PROP_RX_VOLUME sets the audio output volume, 0 to 63.
	PROP_RX_VOLUME = 0x4000

	// PROP_RX_HARD_MUTE mutes the left (bit 1) and right (bit 0) outputs.
	PROP_RX_HARD_MUTE = 0x4001

	// RX_VOLUME_MAX is the top of the RX_VOLUME scale.
	RX_VOLUME_MAX = 63

	// RX_HARD_MUTE_BOTH mutes both output channels.
	RX_HARD_MUTE_BOTH = 0x0003
)

// partNumberSi4735 is the part number GET_REV reports for the Si4735.
const partNumberSi4735 = 35
