package sequencer

import "sync/atomic"

// Stats aggregates engine counters. Each engine owns its own instance so
// multiple engines (as in tests) never interfere.
type Stats struct {
	processed   atomic.Int64
	fired       atomic.Int64
	dropped     atomic.Int64
	merged      atomic.Int64
	sinkErrors  atomic.Int64
	queueDepth  atomic.Int64
	activeNotes atomic.Int64
}

// Snapshot is a point-in-time copy of the engine counters, safe to
// request from any goroutine.
type Snapshot struct {
	Processed   int64 `json:"processed"`
	Fired       int64 `json:"fired"`
	Dropped     int64 `json:"dropped"`
	Merged      int64 `json:"merged"`
	SinkErrors  int64 `json:"sink_errors"`
	QueueDepth  int64 `json:"queue_depth"`
	ActiveNotes int64 `json:"active_notes"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Processed:   s.processed.Load(),
		Fired:       s.fired.Load(),
		Dropped:     s.dropped.Load(),
		Merged:      s.merged.Load(),
		SinkErrors:  s.sinkErrors.Load(),
		QueueDepth:  s.queueDepth.Load(),
		ActiveNotes: s.activeNotes.Load(),
	}
}
