package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cbegin/fmsynth-go/internal/fm"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrNoMIDIInput is returned when no MIDI input port is available.
var ErrNoMIDIInput = errors.New("no MIDI input ports")

// sustainController is the MIDI damper pedal controller number.
const sustainController = 64

// Sink receives translated control messages.
type Sink interface {
	Send(msg fm.Message)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg fm.Message)

func (f SinkFunc) Send(msg fm.Message) { f(msg) }

// FromMIDI translates a channel voice message into a control message. Note-on
// with velocity 0 counts as note-off, controller 64 moves the sustain pedal
// (down from 64 upward) and everything else is reported as not handled.
// The channel is ignored.
func FromMIDI(msg midi.Message) (fm.Message, bool) {
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return fm.NoteOn(int(key), int(vel)), true
	case msg.GetNoteEnd(&ch, &key):
		return fm.NoteOff(int(key)), true
	case msg.GetControlChange(&ch, &cc, &val) && cc == sustainController:
		return fm.Sustain(val >= 64), true
	}
	return fm.Message{}, false
}

// MIDIInputs lists the names of the available input ports.
func MIDIInputs() []string {
	ports := midi.GetInPorts()
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.String())
	}
	return names
}

// ListenMIDI forwards messages from the named input port to sink until ctx is
// cancelled. An empty name listens to every available input.
func ListenMIDI(ctx context.Context, name string, sink Sink, logger *slog.Logger) error {
	var ports []drivers.In
	if name == "" {
		ports = midi.GetInPorts()
		if len(ports) == 0 {
			return ErrNoMIDIInput
		}
	} else {
		in, err := midi.FindInPort(name)
		if err != nil {
			return fmt.Errorf("MIDI input %q: %w", name, err)
		}
		ports = []drivers.In{in}
	}

	var stops []func()
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()
	for _, in := range ports {
		port := in.String()
		stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
			m, ok := FromMIDI(msg)
			if !ok {
				logger.Debug("unhandled MIDI message", "port", port, "msg", msg.String())
				return
			}
			logger.Debug("MIDI", "port", port, "msg", m.String())
			sink.Send(m)
		}, midi.HandleError(func(err error) {
			logger.Warn("MIDI listener error", "port", port, "err", err)
		}))
		if err != nil {
			return fmt.Errorf("listen to MIDI input %q: %w", port, err)
		}
		stops = append(stops, stop)
		logger.Info("MIDI input connected", "port", port)
	}

	<-ctx.Done()
	return nil
}
