// Package display drives a 16x2 HD44780 character LCD over an I2C
// backpack as the tuner's front panel. The top row shows the mode and
// frequency, the bottom row the volume and transient status notices.
package display

import (
	"context"
	"fmt"
	"time"

	"gobot.io/x/gobot"
	"gobot.io/x/gobot/drivers/i2c"

	"radiotuner/events"
	"radiotuner/tuner"
)

const (
	// controlCommand and controlData select the register the nibble
	// lands in (RS bit plus EN strobed high).
	controlCommand = 0x04
	controlData    = 0x05

	// backpackAddress is the PCF8574 default address.
	backpackAddress = 0x27

	rowLength = 16
)

// FrontPanelDriver renders tuner state on the LCD. It is a gobot
// driver; Watch attaches it to the state machine and event hub.
//
//goland:noinspection GoUnnecessarilyExportedIdentifiers
type FrontPanelDriver struct {
	name         string
	i2cConnector i2c.Connector
	i2c.Config

	i2cAddr int
	conn    i2c.Connection

	backlight bool
}

// NewFrontPanelDriver creates the front panel on the connector's
// default bus.
func NewFrontPanelDriver(connector i2c.Connector, options ...func(i2c.Config)) *FrontPanelDriver {
	d := &FrontPanelDriver{
		name:         gobot.DefaultName("FrontPanel"),
		i2cConnector: connector,
		Config:       i2c.NewConfig(),
		i2cAddr:      backpackAddress,
		backlight:    true,
	}

	for _, option := range options {
		option(d)
	}

	return d
}

// Name of our device
func (d *FrontPanelDriver) Name() string {
	return d.name
}

// SetName set the name of our device
func (d *FrontPanelDriver) SetName(name string) {
	d.name = name
}

// Connection retrieves the i2c connection to the device
func (d *FrontPanelDriver) Connection() gobot.Connection {
	return d.i2cConnector.(gobot.Connection)
}

// Start initializes the controller into 4-bit, 2-line mode and clears
// the panel.
func (d *FrontPanelDriver) Start() error {
	bus := d.GetBusOrDefault(d.i2cConnector.GetDefaultBus())

	var err error
	d.conn, err = d.i2cConnector.GetConnection(d.i2cAddr, bus)
	if err != nil {
		return err
	}

	// HD44780 4-bit init sequence, then 2 lines / 5x8 font, display on.
	for _, cmd := range []byte{0x33, 0x32, 0x28, 0x0C} {
		if err = d.sendCommand(cmd); err != nil {
			return err
		}
		time.Sleep(5 * time.Millisecond)
	}

	return d.clear()
}

// Halt blanks the panel and drops the backlight.
func (d *FrontPanelDriver) Halt() error {
	d.backlight = false
	return d.clear()
}

// Watch consumes tuner events and repaints the panel until ctx is
// cancelled. Paint failures are returned through errf and do not stop
// the watch; the panel is cosmetic.
func (d *FrontPanelDriver) Watch(ctx context.Context, machine *tuner.Machine, hub *events.Hub, errf func(error)) {
	if errf == nil {
		errf = func(error) {}
	}

	sub := hub.Subscribe("display")
	defer hub.Unsubscribe(sub)

	if st, err := machine.Status(ctx); err == nil {
		if err := d.ShowState(st); err != nil {
			errf(err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Type == events.OperationError {
				if err := d.showLines("error", truncate(ev.Err)); err != nil {
					errf(err)
				}
				continue
			}
			st, err := machine.Status(ctx)
			if err != nil {
				return
			}
			if err := d.ShowState(st); err != nil {
				errf(err)
			}
		}
	}
}

// ShowState paints a full state snapshot.
func (d *FrontPanelDriver) ShowState(st tuner.State) error {
	top := "radio off"
	if st.Mode != tuner.ModeOff {
		top = fmt.Sprintf("%s %s", st.Mode, tuner.FormatFrequency(st.Mode, st.Frequency))
	}

	bottom := fmt.Sprintf("vol %d", st.Volume)
	switch {
	case st.Muted:
		bottom += " muted"
	case st.Busy:
		bottom += " ..."
	}

	return d.showLines(top, bottom)
}

func (d *FrontPanelDriver) showLines(top, bottom string) error {
	if err := d.writeRow(0, pad(top)); err != nil {
		return err
	}
	return d.writeRow(1, pad(bottom))
}

func (d *FrontPanelDriver) writeRow(row int, text string) error {
	addr := byte(0x80 + 0x40*row)
	if err := d.sendCommand(addr); err != nil {
		return err
	}
	for _, ch := range []byte(text) {
		if err := d.sendData(ch); err != nil {
			return err
		}
	}
	return nil
}

// clear needs the backlight bit set while the command lands.
func (d *FrontPanelDriver) clear() error {
	lit := d.backlight
	d.backlight = true
	if err := d.sendCommand(0x01); err != nil {
		return err
	}
	time.Sleep(2 * time.Millisecond)
	d.backlight = lit

	return d.writeBare()
}

func (d *FrontPanelDriver) sendCommand(cmd byte) error {
	return d.communicate(controlCommand, cmd)
}

func (d *FrontPanelDriver) sendData(b byte) error {
	return d.communicate(controlData, b)
}

// communicate clocks one byte out as two nibbles, strobing EN around
// each.
func (d *FrontPanelDriver) communicate(control byte, b byte) error {
	for _, nibble := range []byte{b & 0xF0, (b & 0x0F) << 4} {
		buf := nibble | control
		if err := d.write(buf); err != nil {
			return err
		}
		time.Sleep(2 * time.Millisecond)
		if err := d.write(buf &^ 0x04); err != nil {
			return err
		}
	}
	return nil
}

func (d *FrontPanelDriver) write(b byte) error {
	if d.backlight {
		b |= 0x08
	} else {
		b |= 0x07
	}
	return d.conn.WriteByte(b)
}

// writeBare refreshes just the backlight state.
func (d *FrontPanelDriver) writeBare() error {
	var b byte
	err := d.write(b)
	time.Sleep(2 * time.Millisecond)
	return err
}

func pad(s string) string {
	if len(s) >= rowLength {
		return s[:rowLength]
	}
	return fmt.Sprintf("%-*s", rowLength, s)
}

func truncate(s string) string {
	if len(s) > rowLength {
		return s[:rowLength]
	}
	return s
}
