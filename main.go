package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gobot.io/x/gobot"
	"gobot.io/x/gobot/platforms/raspi"

	"radiotuner/config"
	"radiotuner/console"
	"radiotuner/display"
	"radiotuner/events"
	"radiotuner/monitor"
	"radiotuner/radio"
	"radiotuner/tuner"
)

// stdioStream presents stdin/stdout as one console stream when no
// serial port is configured.
type stdioStream struct{}

func (stdioStream) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioStream) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "/etc/radiotuner/config.yaml", "path to the YAML config")
	noDisplay := flag.Bool("no-display", false, "run without the LCD front panel")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalln(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adaptor := raspi.NewAdaptor()

	driverConfig := radio.Si4735Config{
		I2CAddress:        cfg.Driver.I2CAddress,
		ResetPin:          cfg.Driver.ResetPin,
		SeekDownSupported: cfg.Driver.SeekDownSupported,
		DebugMode:         cfg.Driver.Debug,
		DebugLog:          log.Printf,
		Log:               log.Printf,
	}
	rdio, err := radio.NewSi4735Driver(adaptor, driverConfig)
	if err != nil {
		log.Fatalln(err)
	}

	hub := events.NewHub(events.DefaultCapacity)
	defer hub.Close()

	machine := tuner.New(rdio, hub, cfg.TunerConfig(), log.Printf)

	var stream io.ReadWriter = stdioStream{}
	if cfg.Serial.Port != "" {
		port, err := console.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			log.Fatalln(err)
		}
		defer port.Close()
		stream = port
	}
	cons := console.New(stream, machine, hub, log.Printf)

	devices := []gobot.Device{rdio}
	var panel *display.FrontPanelDriver
	if !*noDisplay {
		panel = display.NewFrontPanelDriver(adaptor)
		devices = append(devices, panel)
	}

	work := func() {
		go machine.Run(ctx)

		go func() {
			if err := cons.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[console] %v", err)
			}
			stop()
		}()

		if cfg.Monitor.ListenAddr != "" {
			srv := monitor.New(cfg.Monitor.ListenAddr, cfg.Monitor.AuthSecret, machine, hub)
			go func() {
				if err := srv.Run(ctx); err != nil {
					log.Printf("[monitor] %v", err)
				}
			}()
		}

		if panel != nil {
			go panel.Watch(ctx, machine, hub, func(err error) {
				log.Printf("[display] %v", err)
			})
		}

		// Trace every event so operation outcomes land in the journal
		// even with no console attached.
		go func() {
			sub := hub.Subscribe("trace")
			defer hub.Unsubscribe(sub)
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-sub.Events():
					if !ok {
						return
					}
					log.Printf("[event] %s mode=%s freq=%d vol=%d err=%q",
						ev.Type, ev.Mode, ev.Frequency, ev.Volume, ev.Err)
				}
			}
		}()
	}

	robot := gobot.NewRobot("radio tuner",
		[]gobot.Connection{adaptor},
		devices,
		work,
	)
	robot.AutoRun = false

	if err := robot.Start(); err != nil {
		log.Fatalln(err)
	}

	<-ctx.Done()
	if err := robot.Stop(); err != nil {
		log.Printf("stop: %v", err)
	}
}
