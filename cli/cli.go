// Package cli parses text command lines into typed tuner intents.
//
// The dispatcher is purely syntactic: it validates the grammar and the
// shape of arguments, and leaves semantic checks (band bounds, busy
// state) to the state machine. It never touches hardware.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"radiotuner/radio"
	"radiotuner/tuner"
)

var (
	// ErrSyntax flags an unknown command or sub-verb.
	ErrSyntax = errors.New("syntax error")

	// ErrInvalidArgument flags a malformed argument to a known verb.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Usage is the grammar summary printed by the console's help command.
const Usage = `commands:
  status
  mode fm|am|off
  volume up|down|mute|unmute|set <0-100>
  tune up|down|frequency <value>   (MHz on FM, kHz on AM)`

// Parse turns one command line into an intent. Verbs and sub-verbs are
// case-insensitive; arguments are whitespace-separated.
func Parse(line string) (tuner.Intent, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty command: %w", ErrSyntax)
	}

	verb := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch verb {
	case "status":
		if len(args) != 0 {
			return nil, fmt.Errorf("status takes no arguments, got %q: %w", args[0], ErrSyntax)
		}
		return tuner.StatusQuery{}, nil
	case "mode":
		return parseMode(args)
	case "volume":
		return parseVolume(args)
	case "tune":
		return parseTune(args)
	default:
		return nil, fmt.Errorf("unknown command %q: %w", tokens[0], ErrSyntax)
	}
}

func parseMode(args []string) (tuner.Intent, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("mode wants fm|am|off: %w", ErrSyntax)
	}
	switch strings.ToLower(args[0]) {
	case "fm":
		return tuner.SetMode{Mode: tuner.ModeFM}, nil
	case "am":
		return tuner.SetMode{Mode: tuner.ModeAM}, nil
	case "off":
		return tuner.SetMode{Mode: tuner.ModeOff}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q: %w", args[0], ErrSyntax)
	}
}

func parseVolume(args []string) (tuner.Intent, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("volume wants up|down|mute|unmute|set: %w", ErrSyntax)
	}
	switch strings.ToLower(args[0]) {
	case "up":
		return tuner.SetVolume{Op: tuner.VolumeUp}, nil
	case "down":
		return tuner.SetVolume{Op: tuner.VolumeDown}, nil
	case "mute":
		return tuner.SetVolume{Op: tuner.VolumeMute}, nil
	case "unmute":
		return tuner.SetVolume{Op: tuner.VolumeUnmute}, nil
	case "set":
		if len(args) != 2 {
			return nil, fmt.Errorf("volume set wants a level: %w", ErrSyntax)
		}
		// The level must parse as an unsigned byte; clamping to the
		// 0-100 scale is the state machine's business.
		level, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("volume level %q: %w", args[1], ErrInvalidArgument)
		}
		return tuner.SetVolume{Op: tuner.VolumeSet, Level: int(level)}, nil
	default:
		return nil, fmt.Errorf("unknown volume verb %q: %w", args[0], ErrSyntax)
	}
}

func parseTune(args []string) (tuner.Intent, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("tune wants up|down|frequency: %w", ErrSyntax)
	}
	switch strings.ToLower(args[0]) {
	case "up":
		return tuner.Seek{Direction: radio.SeekUp}, nil
	case "down":
		return tuner.Seek{Direction: radio.SeekDown}, nil
	case "frequency":
		if len(args) != 2 {
			return nil, fmt.Errorf("tune frequency wants a value: %w", ErrSyntax)
		}
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil || value <= 0 {
			return nil, fmt.Errorf("frequency %q: %w", args[1], ErrInvalidArgument)
		}
		return tuner.TuneFrequency{Value: value}, nil
	default:
		return nil, fmt.Errorf("unknown tune verb %q: %w", args[0], ErrSyntax)
	}
}
