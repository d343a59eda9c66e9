// Package sequencer implements the quantization and note scheduling engine:
// it buffers incoming note requests, shifts them onto a tempo grid, and
// dispatches note-on/note-off pairs to a Sink at the right moments.
package sequencer

import (
	"errors"
	"time"
)

// ErrInvalidConfig wraps every construction-time validation failure.
// It is the only error class that prevents the engine from starting.
var ErrInvalidConfig = errors.New("invalid sequencer configuration")

// Subdivision selects the fractional beat unit of the tempo grid.
type Subdivision string

const (
	SubdivisionQuarter      Subdivision = "4th"
	SubdivisionEighth       Subdivision = "8th"
	SubdivisionSixteenth    Subdivision = "16th"
	SubdivisionThirtySecond Subdivision = "32nd"
	SubdivisionSixtyFourth  Subdivision = "64th"
)

// subdivisionFactors maps each subdivision to the number of grid lines
// per quarter note.
var subdivisionFactors = map[Subdivision]int{
	SubdivisionQuarter:      1,
	SubdivisionEighth:       2,
	SubdivisionSixteenth:    4,
	SubdivisionThirtySecond: 8,
	SubdivisionSixtyFourth:  16,
}

// Factor returns the number of grid lines per quarter note, and whether
// the subdivision is one of the supported values.
func (s Subdivision) Factor() (int, bool) {
	f, ok := subdivisionFactors[s]
	return f, ok
}

// Subdivisions returns the supported subdivision values in grid order.
func Subdivisions() []Subdivision {
	return []Subdivision{
		SubdivisionQuarter,
		SubdivisionEighth,
		SubdivisionSixteenth,
		SubdivisionThirtySecond,
		SubdivisionSixtyFourth,
	}
}

// NoteRequest is a single note awaiting playback. Immutable once created;
// QuantizedAt equals RequestedAt when quantization is disabled.
type NoteRequest struct {
	Pitch       uint8         // MIDI note number, 0-127
	Velocity    uint8         // 1-127
	Channel     uint8         // 0-15
	RequestedAt time.Time     // when the mapping stage produced the note
	QuantizedAt time.Time     // when the note is scheduled to fire
	Duration    time.Duration // how long the note sounds, > 0
}

// activeNote is a sounding note pending its note-off. Owned exclusively
// by the Scheduler.
type activeNote struct {
	pitch   uint8
	channel uint8
	offAt   time.Time
}

// EnqueueOutcome describes what Enqueue did with a request.
type EnqueueOutcome int

const (
	// Enqueued means the request was inserted with room to spare.
	Enqueued EnqueueOutcome = iota
	// EnqueuedWithEviction means the queue was full and a pending entry
	// was dropped to make room.
	EnqueuedWithEviction
	// MergedDuplicate means a pending request for the same pitch and
	// channel absorbed the new one (velocity and duration replaced).
	MergedDuplicate
)

// EnqueueResult reports the outcome of a queue insertion. Evicted is set
// only when Outcome is EnqueuedWithEviction.
type EnqueueResult struct {
	Outcome EnqueueOutcome
	Evicted *NoteRequest
}
