package source

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RandomSource emits uniformly distributed global strikes at a fixed
// interval. Useful for demos and soak testing.
type RandomSource struct {
	Interval time.Duration
}

// NewRandomSource returns a RandomSource emitting every interval
// (default 2s when interval is zero or negative).
func NewRandomSource(interval time.Duration) *RandomSource {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &RandomSource{Interval: interval}
}

func (r *RandomSource) Name() string { return "random" }

func (r *RandomSource) Run(ctx context.Context, out chan<- Strike) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			strike := Strike{
				Latitude:  rand.Float64()*180 - 90,
				Longitude: rand.Float64()*360 - 180,
				Timestamp: time.Now(),
			}
			select {
			case out <- strike:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// CircleSource sweeps a point around a circle, producing a predictable
// rising-and-falling melodic contour.
type CircleSource struct {
	CenterLat float64
	CenterLon float64
	Radius    float64 // degrees
	Interval  time.Duration
	StepRad   float64 // angle advance per emission

	angle float64
}

// NewCircleSource returns a CircleSource centered on (lat, lon).
func NewCircleSource(lat, lon, radius float64, interval time.Duration) *CircleSource {
	if interval <= 0 {
		interval = time.Second
	}
	if radius <= 0 {
		radius = 20
	}
	return &CircleSource{
		CenterLat: lat,
		CenterLon: lon,
		Radius:    radius,
		Interval:  interval,
		StepRad:   math.Pi / 8,
	}
}

func (c *CircleSource) Name() string { return "circle" }

func (c *CircleSource) Run(ctx context.Context, out chan<- Strike) error {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			strike := Strike{
				Latitude:  c.CenterLat + c.Radius*math.Cos(c.angle),
				Longitude: c.CenterLon + c.Radius*math.Sin(c.angle),
				Timestamp: time.Now(),
			}
			c.angle += c.StepRad
			if c.angle >= 2*math.Pi {
				c.angle -= 2 * math.Pi
			}
			select {
			case out <- strike:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
