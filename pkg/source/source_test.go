package source

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func collect(t *testing.T, src Source, n int, timeout time.Duration) []Strike {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Strike, n)
	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(ctx, out) }()

	var strikes []Strike
	deadline := time.After(timeout)
	for len(strikes) < n {
		select {
		case s := <-out:
			strikes = append(strikes, s)
		case <-deadline:
			t.Fatalf("collected only %d of %d strikes within %v", len(strikes), n, timeout)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v after cancellation, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Error("Run did not return after cancellation")
	}
	return strikes
}

func TestRandomSourceEmitsWithinBounds(t *testing.T) {
	src := NewRandomSource(time.Millisecond)
	strikes := collect(t, src, 20, 5*time.Second)

	for i, s := range strikes {
		if s.Latitude < -90 || s.Latitude > 90 {
			t.Errorf("strike %d latitude %.3f out of range", i, s.Latitude)
		}
		if s.Longitude < -180 || s.Longitude > 180 {
			t.Errorf("strike %d longitude %.3f out of range", i, s.Longitude)
		}
		if s.Timestamp.IsZero() {
			t.Errorf("strike %d has no timestamp", i)
		}
	}
}

func TestCircleSourceStaysOnCircle(t *testing.T) {
	src := NewCircleSource(10, 20, 15, time.Millisecond)
	strikes := collect(t, src, 16, 5*time.Second)

	for i, s := range strikes {
		dLat := s.Latitude - 10
		dLon := s.Longitude - 20
		r := math.Sqrt(dLat*dLat + dLon*dLon)
		if math.Abs(r-15) > 1e-9 {
			t.Errorf("strike %d at radius %.6f, want 15", i, r)
		}
	}

	// The sweep must actually move.
	if strikes[0].Latitude == strikes[1].Latitude && strikes[0].Longitude == strikes[1].Longitude {
		t.Error("consecutive circle strikes did not advance")
	}
}

func TestDecodeMessagePassesPlainTextThrough(t *testing.T) {
	plain := `{"lat": 12.5, "lon": -33.25, "time": 1718000000000}`
	if got := decodeMessage(plain); got != plain {
		t.Errorf("decodeMessage(plain) = %q, want input unchanged", got)
	}
	if got := decodeMessage(""); got != "" {
		t.Errorf("decodeMessage(\"\") = %q, want empty", got)
	}
}

func TestDecodeMessageExpandsDictionaryCodes(t *testing.T) {
	// After reading "AB" the decoder's first dictionary slot (256) holds
	// "AB"; a following code 256 must expand to it.
	in := "AB" + string(rune(256))
	if got := decodeMessage(in); got != "ABAB" {
		t.Errorf("decodeMessage(%q) = %q, want %q", in, got, "ABAB")
	}

	// An unseen code expands to previous entry plus its first character.
	in = "AB" + string(rune(257))
	if got := decodeMessage(in); got != "ABBB" {
		t.Errorf("decodeMessage(%q) = %q, want %q", in, got, "ABBB")
	}
}
