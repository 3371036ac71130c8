package tuner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"radiotuner/events"
	"radiotuner/radio"
)

// fakeDriver is a scriptable stand-in for the protocol driver.
type fakeDriver struct {
	mu       sync.Mutex
	powerUps []radio.Band
	tunes    []uint16
	props    [][2]uint16

	powerUpErr error
	tuneErr    error
	seekErr    error
	propErr    error
	seek       radio.SeekOutcome

	// blockTune, when non-nil, stalls Tune until the channel closes.
	blockTune chan struct{}
}

func (f *fakeDriver) PowerUp(band radio.Band) error {
	f.mu.Lock()
	f.powerUps = append(f.powerUps, band)
	f.mu.Unlock()
	return f.powerUpErr
}

func (f *fakeDriver) PowerDown() error { return nil }

func (f *fakeDriver) SetProperty(prop uint16, value uint16) error {
	f.mu.Lock()
	f.props = append(f.props, [2]uint16{prop, value})
	f.mu.Unlock()
	return f.propErr
}

func (f *fakeDriver) Tune(frequency uint16) error {
	f.mu.Lock()
	block := f.blockTune
	f.tunes = append(f.tunes, frequency)
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.tuneErr
}

func (f *fakeDriver) Seek(radio.Direction) (radio.SeekOutcome, error) {
	return f.seek, f.seekErr
}

func (f *fakeDriver) GetStatus() (radio.StatusBits, error) { return radio.StatusBits(0x80), nil }
func (f *fakeDriver) LastStatus() radio.StatusBits         { return radio.StatusBits(0x80) }

func (f *fakeDriver) propWrites() [][2]uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]uint16(nil), f.props...)
}

func (f *fakeDriver) tuned() []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint16(nil), f.tunes...)
}

func testConfig() Config {
	return Config{
		FM: radio.Band{Name: "fm", Function: radio.POWER_UP_FUNC_FM, Bottom: 8750, Top: 10800, Spacing: 10},
		AM: radio.Band{Name: "am", Function: radio.POWER_UP_FUNC_AM, Bottom: 520, Top: 1710, Spacing: 10},
	}
}

func startMachine(t *testing.T, drv Driver) (*Machine, *events.Subscriber, context.Context) {
	t.Helper()

	hub := events.NewHub(64)
	sub := hub.Subscribe(t.Name())
	m := New(drv, hub, testConfig(), t.Logf)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		hub.Close()
	})
	go m.Run(ctx)
	return m, sub, ctx
}

func waitEvent(t *testing.T, sub *events.Subscriber, want events.Type) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event within deadline", want)
		}
	}
}

func TestModeChangePowersUpTunesAndRestoresAudio(t *testing.T) {
	drv := &fakeDriver{}
	m, sub, ctx := startMachine(t, drv)

	if err := m.Apply(ctx, SetMode{Mode: ModeFM}); err != nil {
		t.Fatalf("set mode fm: %v", err)
	}

	ev := waitEvent(t, sub, events.ModeChanged)
	if ev.Mode != "fm" {
		t.Errorf("event mode = %q, want fm", ev.Mode)
	}
	if ev.Frequency != 8750 {
		t.Errorf("event frequency = %d, want band bottom 8750", ev.Frequency)
	}

	st, err := m.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode != ModeFM || st.Frequency != 8750 || st.Busy {
		t.Errorf("state = %+v, want fm/8750/idle", st)
	}

	if got := drv.tuned(); len(got) != 1 || got[0] != 8750 {
		t.Errorf("tunes = %v, want [8750]", got)
	}

	// Volume and mute pushed after power-up: 20% of the chip scale.
	props := drv.propWrites()
	if len(props) != 2 {
		t.Fatalf("property writes = %v, want volume and mute", props)
	}
	if props[0] != [2]uint16{radio.PROP_RX_VOLUME, 12} {
		t.Errorf("volume write = %v, want {0x4000 12}", props[0])
	}
	if props[1] != [2]uint16{radio.PROP_RX_HARD_MUTE, 0} {
		t.Errorf("mute write = %v, want {0x4001 0}", props[1])
	}
}

func TestBusyRejectsOverlappingOperations(t *testing.T) {
	drv := &fakeDriver{}
	m, sub, ctx := startMachine(t, drv)

	if err := m.Apply(ctx, SetMode{Mode: ModeFM}); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, sub, events.ModeChanged)

	block := make(chan struct{})
	drv.mu.Lock()
	drv.blockTune = block
	drv.mu.Unlock()

	if err := m.Apply(ctx, TuneFrequency{Value: 101.1}); err != nil {
		t.Fatalf("first tune: %v", err)
	}

	if err := m.Apply(ctx, TuneFrequency{Value: 98.7}); !errors.Is(err, ErrBusy) {
		t.Errorf("second tune = %v, want ErrBusy", err)
	}
	if err := m.Apply(ctx, Seek{Direction: radio.SeekUp}); !errors.Is(err, ErrBusy) {
		t.Errorf("seek while busy = %v, want ErrBusy", err)
	}
	if err := m.Apply(ctx, SetMode{Mode: ModeAM}); !errors.Is(err, ErrBusy) {
		t.Errorf("mode change while busy = %v, want ErrBusy", err)
	}

	// Volume is never busy-rejected, and must not touch the chip while
	// the tune is in flight.
	propsBefore := len(drv.propWrites())
	if err := m.Apply(ctx, SetVolume{Op: VolumeUp}); err != nil {
		t.Errorf("volume while busy = %v, want nil", err)
	}
	waitEvent(t, sub, events.VolumeChanged)
	if got := len(drv.propWrites()); got != propsBefore {
		t.Errorf("volume wrote %d properties while busy, want none", got-propsBefore)
	}

	close(block)
	ev := waitEvent(t, sub, events.FrequencyChanged)
	if ev.Frequency != 10110 {
		t.Errorf("tuned frequency = %d, want 10110", ev.Frequency)
	}

	// Busy cleared: the next operation is accepted.
	if err := m.Apply(ctx, Seek{Direction: radio.SeekUp}); err != nil {
		t.Errorf("seek after completion = %v, want nil", err)
	}
}

func TestTuneValidation(t *testing.T) {
	drv := &fakeDriver{}
	m, sub, ctx := startMachine(t, drv)

	if err := m.Apply(ctx, TuneFrequency{Value: 101.1}); !errors.Is(err, ErrModeOff) {
		t.Errorf("tune while off = %v, want ErrModeOff", err)
	}
	if err := m.Apply(ctx, Seek{Direction: radio.SeekUp}); !errors.Is(err, ErrModeOff) {
		t.Errorf("seek while off = %v, want ErrModeOff", err)
	}

	if err := m.Apply(ctx, SetMode{Mode: ModeFM}); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, sub, events.ModeChanged)

	for _, tc := range []struct {
		name  string
		value float64
	}{
		{"below band", 87.4},
		{"above band", 108.1},
		{"off grid", 101.15},
	} {
		if err := m.Apply(ctx, TuneFrequency{Value: tc.value}); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("%s (%v) = %v, want ErrOutOfRange", tc.name, tc.value, err)
		}
	}

	// Band edges are in range.
	for _, edge := range []float64{87.5, 108.0} {
		if err := m.Apply(ctx, TuneFrequency{Value: edge}); err != nil {
			t.Errorf("edge %v = %v, want nil", edge, err)
		}
		waitEvent(t, sub, events.FrequencyChanged)
	}
}

func TestVolumeClampAndMute(t *testing.T) {
	drv := &fakeDriver{}
	m, sub, ctx := startMachine(t, drv)

	if err := m.Apply(ctx, SetVolume{Op: VolumeSet, Level: 150}); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, sub, events.VolumeChanged); ev.Volume != 100 {
		t.Errorf("volume after set 150 = %d, want 100", ev.Volume)
	}

	if err := m.Apply(ctx, SetVolume{Op: VolumeUp}); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, sub, events.VolumeChanged); ev.Volume != 100 {
		t.Errorf("volume up at ceiling = %d, want 100", ev.Volume)
	}

	if err := m.Apply(ctx, SetVolume{Op: VolumeSet, Level: 0}); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, sub, events.VolumeChanged)
	if err := m.Apply(ctx, SetVolume{Op: VolumeDown}); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, sub, events.VolumeChanged); ev.Volume != 0 {
		t.Errorf("volume down at floor = %d, want 0", ev.Volume)
	}

	if err := m.Apply(ctx, SetVolume{Op: VolumeMute}); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, sub, events.VolumeChanged); !ev.Muted {
		t.Error("mute event not muted")
	}
	if err := m.Apply(ctx, SetVolume{Op: VolumeUnmute}); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, sub, events.VolumeChanged); ev.Muted {
		t.Error("unmute event still muted")
	}
}

func TestVolumeWritesChipWhilePoweredAndIdle(t *testing.T) {
	drv := &fakeDriver{}
	m, sub, ctx := startMachine(t, drv)

	if err := m.Apply(ctx, SetMode{Mode: ModeFM}); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, sub, events.ModeChanged)
	before := len(drv.propWrites())

	if err := m.Apply(ctx, SetVolume{Op: VolumeSet, Level: 50}); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, sub, events.VolumeChanged)

	props := drv.propWrites()
	if len(props) != before+2 {
		t.Fatalf("property writes = %v, want volume and mute appended", props)
	}
	if props[before] != [2]uint16{radio.PROP_RX_VOLUME, 31} {
		t.Errorf("volume write = %v, want {0x4000 31}", props[before])
	}
}

func TestSeekFailurePublishesErrorAndClearsBusy(t *testing.T) {
	drv := &fakeDriver{seekErr: radio.ErrUnsupported}
	m, sub, ctx := startMachine(t, drv)

	if err := m.Apply(ctx, SetMode{Mode: ModeFM}); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, sub, events.ModeChanged)

	if err := m.Apply(ctx, Seek{Direction: radio.SeekDown}); err != nil {
		t.Fatalf("seek down accepted = %v, want nil (fails async)", err)
	}
	ev := waitEvent(t, sub, events.OperationError)
	if ev.Err == "" {
		t.Error("error event carries no message")
	}

	st, err := m.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Busy {
		t.Error("busy still set after failed seek")
	}
	if err := m.Apply(ctx, TuneFrequency{Value: 101.1}); err != nil {
		t.Errorf("tune after failed seek = %v, want nil", err)
	}
}

func TestSeekResultUpdatesFrequency(t *testing.T) {
	drv := &fakeDriver{seek: radio.SeekOutcome{Found: true, Frequency: 9870}}
	m, sub, ctx := startMachine(t, drv)

	if err := m.Apply(ctx, SetMode{Mode: ModeFM}); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, sub, events.ModeChanged)

	if err := m.Apply(ctx, Seek{Direction: radio.SeekUp}); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, sub, events.SeekResult)
	if !ev.Found || ev.Frequency != 9870 {
		t.Errorf("seek result = found=%t freq=%d, want found 9870", ev.Found, ev.Frequency)
	}

	st, err := m.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Frequency != 9870 {
		t.Errorf("state frequency = %d, want 9870", st.Frequency)
	}
}

func TestModeSwitchRestoresCachedFrequency(t *testing.T) {
	drv := &fakeDriver{}
	m, sub, ctx := startMachine(t, drv)

	if err := m.Apply(ctx, SetMode{Mode: ModeFM}); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, sub, events.ModeChanged)
	if err := m.Apply(ctx, TuneFrequency{Value: 98.1}); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, sub, events.FrequencyChanged)

	if err := m.Apply(ctx, SetMode{Mode: ModeAM}); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, sub, events.ModeChanged); ev.Frequency != 520 {
		t.Errorf("am frequency = %d, want band bottom 520", ev.Frequency)
	}

	if err := m.Apply(ctx, SetMode{Mode: ModeFM}); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, sub, events.ModeChanged); ev.Frequency != 9810 {
		t.Errorf("fm frequency after round trip = %d, want cached 9810", ev.Frequency)
	}
}

func TestPowerUpFailureKeepsModeOff(t *testing.T) {
	drv := &fakeDriver{powerUpErr: radio.ErrUnresponsive}
	m, sub, ctx := startMachine(t, drv)

	if err := m.Apply(ctx, SetMode{Mode: ModeFM}); err != nil {
		t.Fatalf("set mode accepted = %v, want nil (fails async)", err)
	}
	waitEvent(t, sub, events.OperationError)

	st, err := m.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode != ModeOff || st.Busy {
		t.Errorf("state = %+v, want off and idle", st)
	}
}

func TestSetModeOffPowersDown(t *testing.T) {
	drv := &fakeDriver{}
	m, sub, ctx := startMachine(t, drv)

	if err := m.Apply(ctx, SetMode{Mode: ModeFM}); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, sub, events.ModeChanged)

	if err := m.Apply(ctx, SetMode{Mode: ModeOff}); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, sub, events.ModeChanged); ev.Mode != "off" {
		t.Errorf("event mode = %q, want off", ev.Mode)
	}

	// Off-to-off is a no-op, not an error.
	if err := m.Apply(ctx, SetMode{Mode: ModeOff}); err != nil {
		t.Errorf("off while off = %v, want nil", err)
	}
}

func TestFormatFrequency(t *testing.T) {
	for _, tc := range []struct {
		mode Mode
		f    uint16
		want string
	}{
		{ModeFM, 10110, "101.10 MHz"},
		{ModeFM, 8750, "87.50 MHz"},
		{ModeAM, 1010, "1010 kHz"},
		{ModeOff, 0, "-"},
	} {
		if got := FormatFrequency(tc.mode, tc.f); got != tc.want {
			t.Errorf("FormatFrequency(%s, %d) = %q, want %q", tc.mode, tc.f, got, tc.want)
		}
	}
}
