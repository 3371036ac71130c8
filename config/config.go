// Package config loads the tuner configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"radiotuner/radio"
	"radiotuner/tuner"
)

// Config holds everything the daemon needs to start.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Monitor MonitorConfig `yaml:"monitor"`
	Tuner   TunerConfig   `yaml:"tuner"`
	Driver  DriverConfig  `yaml:"driver"`
}

// SerialConfig selects the console stream. An empty port means the
// console runs on stdin/stdout instead of a serial device.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// MonitorConfig configures the HTTP/WebSocket monitor. An empty
// ListenAddr disables it; an empty AuthSecret disables authentication.
type MonitorConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	AuthSecret string `yaml:"auth_secret"`
}

// TunerConfig carries user-level tuning defaults. Frequencies are in
// human units: MHz for FM, kHz for AM and for the FM channel spacing.
type TunerConfig struct {
	VolumeDefault int `yaml:"volume_default"`
	VolumeStep    int `yaml:"volume_step"`

	FM BandConfig `yaml:"fm"`
	AM BandConfig `yaml:"am"`
}

// BandConfig describes one band plan in human units.
type BandConfig struct {
	Bottom  float64 `yaml:"bottom"`
	Top     float64 `yaml:"top"`
	Spacing float64 `yaml:"spacing"` // kHz in both bands
	Default float64 `yaml:"default"` // startup frequency, 0 = band bottom
}

// DriverConfig carries hardware wiring and protocol timing knobs.
type DriverConfig struct {
	I2CAddress        int    `yaml:"i2c_address"`
	ResetPin          string `yaml:"reset_pin"`
	SeekDownSupported bool   `yaml:"seek_down_supported"`
	Debug             bool   `yaml:"debug"`
}

// Default returns the North American band plan with the console on
// stdio and the monitor disabled.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "",
			Baud: 115200,
		},
		Monitor: MonitorConfig{
			ListenAddr: "",
			AuthSecret: "",
		},
		Tuner: TunerConfig{
			VolumeDefault: 20,
			VolumeStep:    5,
			FM: BandConfig{
				Bottom:  87.5,
				Top:     108.0,
				Spacing: 100,
				Default: 0,
			},
			AM: BandConfig{
				Bottom:  520,
				Top:     1710,
				Spacing: 10,
				Default: 0,
			},
		},
		Driver: DriverConfig{
			I2CAddress: radio.Address,
			ResetPin:   "29",
		},
	}
}

// Load reads path, falling back to defaults when the file is missing,
// then applies environment overrides. A present-but-broken file is an
// error: silently running with defaults would mask a typo.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		log.Printf("[config] no config at %s, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		log.Printf("[config] loaded from %s", path)
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides reads environment variables and overrides config
// values. Supported: TUNER_SERIAL_PORT, TUNER_SERIAL_BAUD,
// TUNER_LISTEN_ADDR, TUNER_AUTH_SECRET.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TUNER_SERIAL_PORT"); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv("TUNER_SERIAL_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Serial.Baud = n
		}
	}
	if v := os.Getenv("TUNER_LISTEN_ADDR"); v != "" {
		c.Monitor.ListenAddr = v
	}
	if v := os.Getenv("TUNER_AUTH_SECRET"); v != "" {
		c.Monitor.AuthSecret = v
	}
}

func (c *Config) validate() error {
	for _, b := range []struct {
		name string
		band BandConfig
	}{{"fm", c.Tuner.FM}, {"am", c.Tuner.AM}} {
		if b.band.Bottom <= 0 || b.band.Top <= b.band.Bottom {
			return fmt.Errorf("config: %s band %v-%v is not a range", b.name, b.band.Bottom, b.band.Top)
		}
		if b.band.Spacing <= 0 {
			return fmt.Errorf("config: %s band spacing %v must be positive", b.name, b.band.Spacing)
		}
	}
	if c.Tuner.VolumeDefault < 0 || c.Tuner.VolumeDefault > 100 {
		return fmt.Errorf("config: volume_default %d outside 0-100", c.Tuner.VolumeDefault)
	}
	return nil
}

// TunerConfig converts the human-units band plans into the state
// machine's chip-native configuration.
func (c *Config) TunerConfig() tuner.Config {
	return tuner.Config{
		FM:            c.Tuner.FM.fmBand(),
		AM:            c.Tuner.AM.amBand(),
		FMDefault:     fmNative(c.Tuner.FM.Default),
		AMDefault:     amNative(c.Tuner.AM.Default),
		DefaultVolume: c.Tuner.VolumeDefault,
		VolumeStep:    c.Tuner.VolumeStep,
	}
}

// fmBand converts MHz bounds and kHz spacing into the chip's 10 kHz
// units: 87.5 MHz becomes 8750, 100 kHz spacing becomes 10.
func (b BandConfig) fmBand() radio.Band {
	return radio.Band{
		Name:       "fm",
		Function:   radio.POWER_UP_FUNC_FM,
		Bottom:     fmNative(b.Bottom),
		Top:        fmNative(b.Top),
		Spacing:    uint16(math.Round(b.Spacing / 10)),
		Deemphasis: 0x02, // 75 us
	}
}

// amBand passes kHz through unchanged.
func (b BandConfig) amBand() radio.Band {
	return radio.Band{
		Name:       "am",
		Function:   radio.POWER_UP_FUNC_AM,
		Bottom:     amNative(b.Bottom),
		Top:        amNative(b.Top),
		Spacing:    uint16(math.Round(b.Spacing)),
		Deemphasis: 0x01, // 50 us
	}
}

func fmNative(mhz float64) uint16 {
	return uint16(math.Round(mhz * 100))
}

func amNative(khz float64) uint16 {
	return uint16(math.Round(khz))
}
