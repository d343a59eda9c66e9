// Package geo maps geographic coordinates to MIDI pitch and velocity.
// Latitude selects a scale degree across a configurable octave span;
// longitude selects velocity. The mapping is pure and stateless.
package geo

import (
	"fmt"
	"sort"
)

// scales holds the semitone intervals of each supported scale.
var scales = map[string][]int{
	"pentatonic": {0, 2, 4, 7, 9},
	"major":      {0, 2, 4, 5, 7, 9, 11},
	"minor":      {0, 2, 3, 5, 7, 8, 10},
	"chromatic":  {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	"blues":      {0, 3, 5, 6, 7, 10},
	"dorian":     {0, 2, 3, 5, 7, 9, 10},
}

// ScaleNames returns the supported scale names, sorted.
func ScaleNames() []string {
	names := make([]string, 0, len(scales))
	for name := range scales {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mapper converts coordinates to notes within one musical scale.
type Mapper struct {
	intervals   []int
	baseNote    int
	octaveRange int
	velocityMin int
	velocityMax int
}

// NewMapper builds a Mapper. baseNote is the MIDI note of the lowest
// scale degree (60 = Middle C); octaveRange is how many octaves the
// latitude axis spans.
func NewMapper(scale string, baseNote, octaveRange, velocityMin, velocityMax int) (*Mapper, error) {
	intervals, ok := scales[scale]
	if !ok {
		return nil, fmt.Errorf("unknown scale %q (supported: %v)", scale, ScaleNames())
	}
	if baseNote < 0 || baseNote > 127 {
		return nil, fmt.Errorf("base note %d outside 0-127", baseNote)
	}
	if octaveRange < 1 {
		return nil, fmt.Errorf("octave range %d must be at least 1", octaveRange)
	}
	if velocityMin < 1 || velocityMax > 127 || velocityMin > velocityMax {
		return nil, fmt.Errorf("velocity range %d-%d invalid (need 1 <= min <= max <= 127)", velocityMin, velocityMax)
	}
	return &Mapper{
		intervals:   intervals,
		baseNote:    baseNote,
		octaveRange: octaveRange,
		velocityMin: velocityMin,
		velocityMax: velocityMax,
	}, nil
}

// Map converts a coordinate to a MIDI pitch and velocity. Latitude is
// normalized from [-90, 90] onto the scale degrees, longitude from
// [-180, 180] onto the velocity range. Out-of-range inputs clamp.
func (m *Mapper) Map(latitude, longitude float64) (pitch, velocity uint8) {
	latNorm := clamp01((latitude + 90) / 180)
	lonNorm := clamp01((longitude + 180) / 360)

	total := len(m.intervals) * m.octaveRange
	idx := int(latNorm * float64(total))
	if idx >= total {
		idx = total - 1
	}
	octave := idx / len(m.intervals)
	degree := idx % len(m.intervals)

	note := m.baseNote + octave*12 + m.intervals[degree]
	if note < 0 {
		note = 0
	}
	if note > 127 {
		note = 127
	}

	vel := m.velocityMin + int(lonNorm*float64(m.velocityMax-m.velocityMin))
	if vel < 1 {
		vel = 1
	}
	if vel > 127 {
		vel = 127
	}

	return uint8(note), uint8(vel)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI note number as pitch class plus octave
// (60 = C4), for logs and the live monitor.
func NoteName(pitch uint8) string {
	return fmt.Sprintf("%s%d", noteNames[pitch%12], int(pitch)/12-1)
}
