// Package console runs the interactive text console over a serial port
// or any other line-oriented stream.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"radiotuner/cli"
	"radiotuner/events"
	"radiotuner/tuner"
)

const prompt = "> "

// Console reads command lines from a stream, applies them to the state
// machine and echoes both the immediate verdicts and the asynchronous
// operation outcomes back to the same stream.
type Console struct {
	rw      io.ReadWriter
	machine *tuner.Machine
	hub     *events.Hub
	logf    func(format string, v ...interface{})
}

// New wires a console to the state machine and event hub. logf may be
// nil to discard internal diagnostics.
func New(rw io.ReadWriter, machine *tuner.Machine, hub *events.Hub, logf func(format string, v ...interface{})) *Console {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Console{rw: rw, machine: machine, hub: hub, logf: logf}
}

// Run serves the console until ctx is cancelled or the stream's reader
// fails. All writes happen on this goroutine so command replies and
// event echoes never interleave mid-line.
func (c *Console) Run(ctx context.Context) error {
	sub := c.hub.Subscribe("console")
	defer c.hub.Unsubscribe(sub)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.rw)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.print("radio tuner console, type help for commands\n")
	c.print(prompt)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("console read: %w", err)
			}
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			c.print("\r%s\n%s", formatEvent(ev), prompt)
		case line := <-lines:
			c.handleLine(ctx, line)
			c.print(prompt)
		}
	}
}

func (c *Console) handleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if strings.EqualFold(line, "help") {
		c.print("%s\n", cli.Usage)
		return
	}

	intent, err := cli.Parse(line)
	if err != nil {
		c.print("error: %v\n", err)
		return
	}

	if _, ok := intent.(tuner.StatusQuery); ok {
		st, err := c.machine.Status(ctx)
		if err != nil {
			c.print("error: %v\n", err)
			return
		}
		c.print("%s\n", formatState(st))
		return
	}

	if err := c.machine.Apply(ctx, intent); err != nil {
		c.print("error: %v\n", err)
		return
	}
	c.print("ok\n")
}

func (c *Console) print(format string, v ...interface{}) {
	if _, err := fmt.Fprintf(c.rw, format, v...); err != nil {
		c.logf("[console] write: %v", err)
	}
}

func formatState(st tuner.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s", st.Mode)
	if st.Mode != tuner.ModeOff {
		fmt.Fprintf(&b, "  frequency: %s", tuner.FormatFrequency(st.Mode, st.Frequency))
	}
	fmt.Fprintf(&b, "  volume: %d", st.Volume)
	if st.Muted {
		b.WriteString(" (muted)")
	}
	fmt.Fprintf(&b, "  busy: %t  status: %s", st.Busy, st.LastStatus)
	return b.String()
}

func formatEvent(ev events.Event) string {
	mode := tuner.ModeOff
	switch ev.Mode {
	case tuner.ModeFM.String():
		mode = tuner.ModeFM
	case tuner.ModeAM.String():
		mode = tuner.ModeAM
	}

	switch ev.Type {
	case events.ModeChanged:
		if mode == tuner.ModeOff {
			return "* radio off"
		}
		return fmt.Sprintf("* mode %s at %s", ev.Mode, tuner.FormatFrequency(mode, ev.Frequency))
	case events.FrequencyChanged:
		return fmt.Sprintf("* tuned to %s", tuner.FormatFrequency(mode, ev.Frequency))
	case events.SeekResult:
		if !ev.Found {
			return fmt.Sprintf("* seek found no station, stopped at %s", tuner.FormatFrequency(mode, ev.Frequency))
		}
		return fmt.Sprintf("* seek found %s", tuner.FormatFrequency(mode, ev.Frequency))
	case events.VolumeChanged:
		if ev.Muted {
			return fmt.Sprintf("* volume %d (muted)", ev.Volume)
		}
		return fmt.Sprintf("* volume %d", ev.Volume)
	case events.OperationError:
		return fmt.Sprintf("* error: %s", ev.Err)
	default:
		return fmt.Sprintf("* %s", ev.Type)
	}
}
