package sequencer

// Sink is the dispatch boundary to a MIDI output. Implementations may
// block or fail per call; the scheduler treats a returned error as
// non-fatal and keeps processing.
type Sink interface {
	NoteOn(channel, pitch, velocity uint8) error
	NoteOff(channel, pitch uint8) error
}
