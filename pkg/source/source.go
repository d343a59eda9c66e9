// Package source provides coordinate streams for the sequencer: live
// lightning strikes from blitzortung.org plus synthetic generators for
// demos and development without a network connection.
package source

import (
	"context"
	"time"
)

// Strike is one timestamped geographic point-event.
type Strike struct {
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

// Source streams strikes into out until the context is cancelled or the
// stream ends. Implementations must not close out.
type Source interface {
	// Name identifies the source in logs and the monitor.
	Name() string
	// Run blocks, emitting strikes. It returns nil on a clean end of
	// stream and the context error on cancellation.
	Run(ctx context.Context, out chan<- Strike) error
}
