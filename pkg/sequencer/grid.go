package sequencer

import (
	"fmt"
	"time"
)

// TempoGrid computes quantized fire times. Grid lines sit at integer
// multiples of the subdivision length from a fixed epoch; swing delays
// every odd-indexed line by swing*length.
type TempoGrid struct {
	bpm         int
	subdivision Subdivision
	swing       float64
	epoch       time.Time
	step        time.Duration // subdivision length
	swingShift  time.Duration // displacement of odd-indexed lines
}

// NewTempoGrid validates the musical parameters and anchors the grid at
// epoch. BPM must be within [60, 200] and swing within [0.0, 0.5].
func NewTempoGrid(bpm int, sub Subdivision, swing float64, epoch time.Time) (*TempoGrid, error) {
	if bpm < 60 || bpm > 200 {
		return nil, fmt.Errorf("%w: tempo %d BPM outside 60-200", ErrInvalidConfig, bpm)
	}
	if swing < 0.0 || swing > 0.5 {
		return nil, fmt.Errorf("%w: swing %.2f outside 0.0-0.5", ErrInvalidConfig, swing)
	}
	factor, ok := sub.Factor()
	if !ok {
		return nil, fmt.Errorf("%w: unknown subdivision %q", ErrInvalidConfig, sub)
	}

	step := time.Duration(int64(time.Minute) / int64(bpm*factor))
	return &TempoGrid{
		bpm:         bpm,
		subdivision: sub,
		swing:       swing,
		epoch:       epoch,
		step:        step,
		swingShift:  time.Duration(swing * float64(step)),
	}, nil
}

// Step returns the subdivision length.
func (g *TempoGrid) Step() time.Duration { return g.step }

// Epoch returns the instant grid line zero sits on.
func (g *TempoGrid) Epoch() time.Time { return g.epoch }

// lineAt returns the timestamp of grid line k, swing-shifted when k is odd.
func (g *TempoGrid) lineAt(k int64) time.Time {
	t := g.epoch.Add(time.Duration(k) * g.step)
	if k%2 != 0 {
		t = t.Add(g.swingShift)
	}
	return t
}

// Next returns the first grid line at or after from. An instant already
// on a line maps to itself, so Next(Next(t)) == Next(t). All arithmetic
// is in integer nanoseconds, keeping that idempotence exact.
func (g *TempoGrid) Next(from time.Time) time.Time {
	if !from.After(g.epoch) {
		return g.epoch
	}
	// Swing only delays lines, so start one line early and walk forward.
	k := int64(from.Sub(g.epoch) / g.step)
	if k > 0 {
		k--
	}
	for {
		if t := g.lineAt(k); !t.Before(from) {
			return t
		}
		k++
	}
}
