// Package config loads geo-sequencer settings from TOML files and
// validates them before the engine is constructed.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/GiesN/geo-sequencer/pkg/geo"
	"github.com/GiesN/geo-sequencer/pkg/sequencer"
)

// DefaultFileName is the configuration file searched for when no
// explicit path is given.
const DefaultFileName = "geo_sequencer.toml"

// SequencerSettings controls the coordinate-to-note mapping.
type SequencerSettings struct {
	ScaleType    string  `toml:"scale_type"`
	BaseNote     int     `toml:"base_note"`
	OctaveRange  int     `toml:"octave_range"`
	VelocityMin  int     `toml:"velocity_min"`
	VelocityMax  int     `toml:"velocity_max"`
	NoteDuration float64 `toml:"note_duration"` // seconds
}

// QuantizationSettings controls the tempo grid.
type QuantizationSettings struct {
	Enabled      bool    `toml:"enabled"`
	TempoBPM     int     `toml:"tempo_bpm"`
	Subdivision  string  `toml:"subdivision"`
	Swing        float64 `toml:"swing"`
	MaxQueueSize int     `toml:"max_queue_size"`
}

// MIDISettings selects the output port and channel.
type MIDISettings struct {
	PortName string `toml:"port_name"`
	Channel  int    `toml:"channel"`
}

// BlitzortungSettings tunes the live lightning source.
type BlitzortungSettings struct {
	ReconnectDelay       float64 `toml:"reconnect_delay"` // seconds
	MaxReconnectAttempts int     `toml:"max_reconnect_attempts"`
}

// APISettings controls the embedded REST server.
type APISettings struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// Config is the full configuration tree.
type Config struct {
	Sequencer    SequencerSettings    `toml:"sequencer"`
	Quantization QuantizationSettings `toml:"quantization"`
	MIDI         MIDISettings         `toml:"midi"`
	Blitzortung  BlitzortungSettings  `toml:"blitzortung"`
	API          APISettings          `toml:"api"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sequencer: SequencerSettings{
			ScaleType:    "pentatonic",
			BaseNote:     48,
			OctaveRange:  5,
			VelocityMin:  80,
			VelocityMax:  127,
			NoteDuration: 2.0,
		},
		Quantization: QuantizationSettings{
			Enabled:      true,
			TempoBPM:     120,
			Subdivision:  string(sequencer.SubdivisionSixteenth),
			Swing:        0.0,
			MaxQueueSize: 100,
		},
		MIDI: MIDISettings{
			PortName: "",
			Channel:  0,
		},
		Blitzortung: BlitzortungSettings{
			ReconnectDelay:       5.0,
			MaxReconnectAttempts: 10,
		},
		API: APISettings{
			Enabled: false,
			Port:    8080,
		},
	}
}

// searchPaths lists the locations probed for a configuration file, in
// priority order.
func searchPaths(explicit string) []string {
	paths := []string{}
	if explicit != "" {
		paths = append(paths, explicit)
	}
	paths = append(paths,
		DefaultFileName,
		"config.toml",
		filepath.Join("config", DefaultFileName),
	)
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".geo_sequencer", DefaultFileName))
	}
	return paths
}

// Load reads the configuration from path, or from the default search
// locations when path is empty. A missing file yields the defaults;
// a file that exists but fails to parse or validate is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	var file string
	for _, candidate := range searchPaths(path) {
		if _, err := os.Stat(candidate); err == nil {
			file = candidate
			break
		}
	}
	if file == "" {
		if path != "" {
			return nil, fmt.Errorf("config file %q not found", path)
		}
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", file, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", file, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", file, err)
	}
	return cfg, nil
}

// Validate checks every range the engine depends on. Any failure here is
// fatal; the engine never starts on an invalid configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Quantization.TempoBPM < 60 || c.Quantization.TempoBPM > 200 {
		errs = append(errs, fmt.Errorf("quantization.tempo_bpm %d outside 60-200", c.Quantization.TempoBPM))
	}
	if _, ok := sequencer.Subdivision(c.Quantization.Subdivision).Factor(); !ok {
		errs = append(errs, fmt.Errorf("quantization.subdivision %q not one of %v",
			c.Quantization.Subdivision, sequencer.Subdivisions()))
	}
	if c.Quantization.Swing < 0.0 || c.Quantization.Swing > 0.5 {
		errs = append(errs, fmt.Errorf("quantization.swing %.2f outside 0.0-0.5", c.Quantization.Swing))
	}
	if c.Quantization.MaxQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("quantization.max_queue_size %d must be positive", c.Quantization.MaxQueueSize))
	}
	if c.Sequencer.NoteDuration <= 0 {
		errs = append(errs, fmt.Errorf("sequencer.note_duration %.2f must be positive", c.Sequencer.NoteDuration))
	}
	if c.MIDI.Channel < 0 || c.MIDI.Channel > 15 {
		errs = append(errs, fmt.Errorf("midi.channel %d outside 0-15", c.MIDI.Channel))
	}
	if _, err := geo.NewMapper(c.Sequencer.ScaleType, c.Sequencer.BaseNote,
		c.Sequencer.OctaveRange, c.Sequencer.VelocityMin, c.Sequencer.VelocityMax); err != nil {
		errs = append(errs, fmt.Errorf("sequencer: %w", err))
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d invalid", c.API.Port))
	}

	return errors.Join(errs...)
}

// Mapper builds the coordinate mapper for these settings.
func (c *Config) Mapper() (*geo.Mapper, error) {
	return geo.NewMapper(c.Sequencer.ScaleType, c.Sequencer.BaseNote,
		c.Sequencer.OctaveRange, c.Sequencer.VelocityMin, c.Sequencer.VelocityMax)
}

// SchedulerConfig converts the TOML settings into the engine config.
func (c *Config) SchedulerConfig() sequencer.Config {
	return sequencer.Config{
		Enabled:      c.Quantization.Enabled,
		BPM:          c.Quantization.TempoBPM,
		Subdivision:  sequencer.Subdivision(c.Quantization.Subdivision),
		Swing:        c.Quantization.Swing,
		MaxQueueSize: c.Quantization.MaxQueueSize,
		NoteDuration: time.Duration(c.Sequencer.NoteDuration * float64(time.Second)),
	}
}

// ReconnectDelay returns the blitzortung reconnect delay as a Duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Blitzortung.ReconnectDelay * float64(time.Second))
}
