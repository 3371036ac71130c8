package radio

import (
	"errors"
	"fmt"
	"sync"

	"gobot.io/x/gobot/drivers/i2c"
)

// I2CTestAdaptor is useful to implement tests for
// passing i2c messages back and forth.
type I2CTestAdaptor struct {
	name          string
	written       []byte
	lastWritten   []byte
	mtx           sync.Mutex
	i2cConnectErr bool
	i2cReadImpl   func(*I2CTestAdaptor, []byte) (int, error)
	i2cWriteImpl  func(*I2CTestAdaptor, []byte) (int, error)

	resetWrites []byte

	// Scripted chip behaviour, tweak per test before use.
	partNumber    byte
	stcAfterPolls int
	statusPolls   int
	tuneValid     bool
	tuneBandLimit bool
	tuneFrequency uint16
	tuneRSSI      byte
	tuneSNR       byte
}

func (t *I2CTestAdaptor) DigitalWrite( /* s */ _ string, b byte) (err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.resetWrites = append(t.resetWrites, b)
	return nil
}

func (t *I2CTestAdaptor) Read(b []byte) (count int, err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.i2cReadImpl(t, b)
}

func (t *I2CTestAdaptor) Write(b []byte) (count int, err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.written = append(t.written, b...)
	return t.i2cWriteImpl(t, b)
}

func (t *I2CTestAdaptor) Close() error {
	return nil
}

func (t *I2CTestAdaptor) ReadByte() (val byte, err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	bytes := []byte{0}
	bytesRead, err := t.i2cReadImpl(t, bytes)
	if err != nil {
		return 0, err
	}
	if bytesRead != 1 {
		return 0, fmt.Errorf("buffer underrun")
	}
	val = bytes[0]
	return
}

func (t *I2CTestAdaptor) ReadByteData( /* reg */ uint8) (val uint8, err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	bytes := []byte{0}
	bytesRead, err := t.i2cReadImpl(t, bytes)
	if err != nil {
		return 0, err
	}
	if bytesRead != 1 {
		return 0, fmt.Errorf("buffer underrun")
	}
	val = bytes[0]
	return
}

func (t *I2CTestAdaptor) ReadWordData( /* reg */ uint8) (val uint16, err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	bytes := []byte{0, 0}
	bytesRead, err := t.i2cReadImpl(t, bytes)
	if err != nil {
		return 0, err
	}
	if bytesRead != 2 {
		return 0, fmt.Errorf("buffer underrun")
	}
	l, h := bytes[0], bytes[1]
	return (uint16(h) << 8) | uint16(l), err
}

func (t *I2CTestAdaptor) WriteByte(val byte) (err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.written = append(t.written, val)
	bytes := []byte{val}
	_, err = t.i2cWriteImpl(t, bytes)
	return
}

func (t *I2CTestAdaptor) WriteByteData(reg uint8, val uint8) (err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.written = append(t.written, reg)
	t.written = append(t.written, val)
	bytes := []byte{val}
	_, err = t.i2cWriteImpl(t, bytes)
	return
}

func (t *I2CTestAdaptor) WriteWordData(reg uint8, val uint16) (err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.written = append(t.written, reg)
	l := uint8(val & 0xff)
	h := uint8((val >> 8) & 0xff)
	t.written = append(t.written, l)
	t.written = append(t.written, h)
	bytes := []byte{l, h}
	_, err = t.i2cWriteImpl(t, bytes)
	return
}

func (t *I2CTestAdaptor) WriteBlockData(reg uint8, b []byte) (err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.written = append(t.written, reg)
	t.written = append(t.written, b...)
	_, err = t.i2cWriteImpl(t, b)
	return
}

func (t *I2CTestAdaptor) GetConnection( /* address */ int, /* bus */ int) (connection i2c.Connection, err error) {
	if t.i2cConnectErr {
		return nil, errors.New("invalid i2c connection")
	}
	return t, nil
}

func (t *I2CTestAdaptor) GetDefaultBus() int {
	return 0
}

func (t *I2CTestAdaptor) Name() string          { return t.name }
func (t *I2CTestAdaptor) SetName(n string)      { t.name = n }
func (t *I2CTestAdaptor) Connect() (err error)  { return }
func (t *I2CTestAdaptor) Finalize() (err error) { return }

// NewI2cTestAdaptor scripts a well-behaved Si4735: commands get CTS
// immediately, tune/seek completes after stcAfterPolls status reads,
// and the tune status reports a valid station at tuneFrequency.
func NewI2cTestAdaptor() *I2CTestAdaptor {
	val := &I2CTestAdaptor{
		i2cConnectErr: false,

		partNumber:    35,
		stcAfterPolls: 2,
		tuneValid:     true,
		tuneFrequency: 10110,
		tuneRSSI:      40,
		tuneSNR:       25,
	}

	val.i2cReadImpl = func(t *I2CTestAdaptor, buff []byte) (int, error) {
		switch t.lastWritten[0] {
		case CMD_POWER_UP, CMD_SET_PROPERTY,
			CMD_FM_TUNE_FREQ, CMD_AM_TUNE_FREQ,
			CMD_FM_SEEK_START, CMD_AM_SEEK_START:
			buff[0] = STATUS_CTS
			return 1, nil

		case CMD_GET_INT_STATUS:
			t.statusPolls++
			buff[0] = STATUS_CTS
			if t.statusPolls > t.stcAfterPolls {
				buff[0] |= STATUS_STCINT
			}
			return 1, nil

		case CMD_FM_TUNE_STATUS, CMD_AM_TUNE_STATUS:
			if len(buff) < 8 {
				return 0, nil
			}
			buff[0] = STATUS_CTS
			buff[1] = 0
			if t.tuneValid {
				buff[1] |= TUNE_STATUS_VALID
			}
			if t.tuneBandLimit {
				buff[1] |= TUNE_STATUS_BLTF
			}
			buff[2] = byte(t.tuneFrequency >> 8)
			buff[3] = byte(t.tuneFrequency & 0xFF)
			buff[4] = t.tuneRSSI
			buff[5] = t.tuneSNR
			return 8, nil

		case CMD_GET_REV:
			if len(buff) < 9 {
				return 0, nil
			}
			buff[0] = STATUS_CTS
			buff[1] = t.partNumber
			buff[2], buff[3] = '6', '0'
			buff[8] = 'D'
			return 9, nil

		default:
			buff[0] = STATUS_CTS
			return len(buff), nil
		}
	}

	val.i2cWriteImpl = func(t *I2CTestAdaptor, buff []byte) (int, error) {
		t.lastWritten = make([]byte, len(buff))
		copy(t.lastWritten, buff)
		return len(buff), nil
	}

	return val
}

// commandLog returns every byte written to the bus so far, in order.
func (t *I2CTestAdaptor) commandLog() []byte {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return append([]byte(nil), t.written...)
}

func testDriver() (*Si4735Driver, *I2CTestAdaptor) {
	adaptor := NewI2cTestAdaptor()
	drv, err := NewSi4735Driver(adaptor, Si4735Config{
		Log: func(string, ...interface{}) {},
	})
	if err != nil {
		panic(err)
	}
	if err := drv.Start(); err != nil {
		panic(err)
	}
	return drv, adaptor
}

func testBand() Band {
	return Band{
		Name:       "fm",
		Function:   POWER_UP_FUNC_FM,
		Bottom:     8750,
		Top:        10800,
		Spacing:    10,
		Deemphasis: 0x02,
	}
}
