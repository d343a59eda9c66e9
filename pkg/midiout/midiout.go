// Package midiout adapts the engine's dispatch contract to a system
// MIDI output port.
package midiout

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register MIDI driver
	"go.uber.org/zap"
)

// PortSink sends note events to a MIDI output port.
type PortSink struct {
	port drivers.Out
	send func(midi.Message) error
}

// Open connects to the first output port whose name contains name
// (case-insensitive), or the first available port when name is empty.
func Open(name string) (*PortSink, error) {
	ports := midi.GetOutPorts()
	if len(ports) == 0 {
		return nil, errors.New("no MIDI output ports available")
	}

	var port drivers.Out
	if name == "" {
		port = ports[0]
	} else {
		for _, p := range ports {
			if strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
				port = p
				break
			}
		}
		if port == nil {
			return nil, fmt.Errorf("no MIDI output port matching %q (available: %s)",
				name, strings.Join(ListPorts(), ", "))
		}
	}

	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open MIDI port %q: %w", port.String(), err)
	}
	return &PortSink{port: port, send: send}, nil
}

// String returns the underlying port name.
func (s *PortSink) String() string { return s.port.String() }

// NoteOn sends a note-on message.
func (s *PortSink) NoteOn(channel, pitch, velocity uint8) error {
	return s.send(midi.NoteOn(channel, pitch, velocity))
}

// NoteOff sends a note-off message.
func (s *PortSink) NoteOff(channel, pitch uint8) error {
	return s.send(midi.NoteOff(channel, pitch))
}

// Close releases the port.
func (s *PortSink) Close() error { return s.port.Close() }

// ListPorts returns the names of the available MIDI output ports.
func ListPorts() []string {
	ports := midi.GetOutPorts()
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names
}

// CloseDriver releases the underlying MIDI driver. Call once on exit.
func CloseDriver() { midi.CloseDriver() }

// LogSink logs note events instead of sending them, for dry runs
// without MIDI hardware.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink wraps log as a Sink.
func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) NoteOn(channel, pitch, velocity uint8) error {
	s.log.Info("note on",
		zap.Uint8("channel", channel),
		zap.Uint8("pitch", pitch),
		zap.Uint8("velocity", velocity),
	)
	return nil
}

func (s *LogSink) NoteOff(channel, pitch uint8) error {
	s.log.Info("note off",
		zap.Uint8("channel", channel),
		zap.Uint8("pitch", pitch),
	)
	return nil
}
