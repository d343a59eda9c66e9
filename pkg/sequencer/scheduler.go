package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the scheduler lifecycle state.
type State int32

const (
	// StateIdle means no stream is attached yet.
	StateIdle State = iota
	// StateRunning means the scheduler is consuming events and firing notes.
	StateRunning
	// StateDraining means the stream ended and queued/active notes are flushing.
	StateDraining
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrAlreadyStarted is returned by Start when the scheduler has left Idle.
var ErrAlreadyStarted = errors.New("scheduler already started")

// defaultPollInterval bounds how far a note can land from its grid time.
const defaultPollInterval = 2 * time.Millisecond

// Config holds the engine settings the scheduler honors.
type Config struct {
	Enabled      bool          // quantized (true) or immediate mode
	BPM          int           // 60-200
	Subdivision  Subdivision   // grid resolution
	Swing        float64       // 0.0-0.5
	MaxQueueSize int           // pending request capacity
	NoteDuration time.Duration // how long each note sounds
}

// Scheduler owns engine time. It pops due requests from the note queue,
// dispatches note-on messages with preemption of same-pitch collisions,
// and releases each note once its duration elapses. Stopping always
// flushes sounding notes so no MIDI note is left stuck on.
type Scheduler struct {
	cfg          Config
	grid         *TempoGrid // nil in immediate mode
	queue        *NoteQueue
	sink         Sink
	stats        *Stats
	log          *zap.Logger
	now          func() time.Time
	pollInterval time.Duration

	mu     sync.Mutex
	state  State
	active []activeNote

	// dispatch serializes each sink call with the active-list change it
	// belongs to, so the shutdown flush cannot overtake an in-flight
	// note-on and a stale expiry note-off cannot silence a fresh note.
	dispatch sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithClock replaces the time source, mainly for deterministic tests.
// The grid epoch is taken from this clock at construction.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithPollInterval overrides the scheduling tick interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewScheduler validates cfg and builds an engine dispatching to sink.
// The tempo grid is anchored at construction time.
func NewScheduler(cfg Config, sink Sink, opts ...Option) (*Scheduler, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: nil sink", ErrInvalidConfig)
	}
	if cfg.NoteDuration <= 0 {
		return nil, fmt.Errorf("%w: note duration %v must be positive", ErrInvalidConfig, cfg.NoteDuration)
	}

	s := &Scheduler{
		cfg:          cfg,
		sink:         sink,
		stats:        &Stats{},
		log:          zap.NewNop(),
		now:          time.Now,
		pollInterval: defaultPollInterval,
		state:        StateIdle,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	queue, err := NewNoteQueue(cfg.MaxQueueSize)
	if err != nil {
		return nil, err
	}
	s.queue = queue

	if cfg.Enabled {
		grid, err := NewTempoGrid(cfg.BPM, cfg.Subdivision, cfg.Swing, s.now())
		if err != nil {
			return nil, err
		}
		s.grid = grid
	}
	return s, nil
}

// Start attaches the stream and begins the timing loop. The loop stops
// when ctx is cancelled, Stop is called, or a Drain completes.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateRunning
	s.mu.Unlock()

	s.log.Info("scheduler started",
		zap.Bool("quantized", s.cfg.Enabled),
		zap.Int("bpm", s.cfg.BPM),
		zap.String("subdivision", string(s.cfg.Subdivision)),
		zap.Float64("swing", s.cfg.Swing),
	)
	go s.run(ctx)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.tick(s.now())
			if s.finishIfDrained() {
				return
			}
		}
	}
}

// Submit accepts a mapped note request from the ingestion flow. In
// quantized mode the request is buffered until its grid time; in
// immediate mode it is dispatched synchronously with QuantizedAt equal
// to RequestedAt. Requests arriving after shutdown are discarded.
func (s *Scheduler) Submit(req NoteRequest) EnqueueResult {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == StateStopped || state == StateDraining {
		s.stats.dropped.Add(1)
		return EnqueueResult{Outcome: EnqueuedWithEviction, Evicted: &req}
	}

	s.stats.processed.Add(1)
	if req.RequestedAt.IsZero() {
		req.RequestedAt = s.now()
	}
	if req.Duration <= 0 {
		req.Duration = s.cfg.NoteDuration
	}

	if !s.cfg.Enabled {
		req.QuantizedAt = req.RequestedAt
		s.fire(req, req.RequestedAt)
		return EnqueueResult{Outcome: Enqueued}
	}

	req.QuantizedAt = s.grid.Next(req.RequestedAt)
	res := s.queue.Enqueue(req)
	switch res.Outcome {
	case EnqueuedWithEviction:
		s.stats.dropped.Add(1)
		s.log.Debug("queue full, dropped pending note",
			zap.Uint8("pitch", res.Evicted.Pitch),
			zap.Time("quantized_at", res.Evicted.QuantizedAt),
		)
	case MergedDuplicate:
		s.stats.merged.Add(1)
	}
	s.stats.queueDepth.Store(int64(s.queue.Len()))
	return res
}

// Drain signals end of stream. Queued and sounding notes finish
// naturally, then the scheduler transitions to Stopped.
func (s *Scheduler) Drain() {
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateDraining
		s.log.Info("stream ended, draining",
			zap.Int("queued", s.queue.Len()),
			zap.Int("active", len(s.active)),
		)
	}
	s.mu.Unlock()
}

// Stop cancels immediately. Every sounding note receives its note-off
// before the scheduler reports Stopped.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()

		// Wait for any in-flight dispatch; its note lands in the flush.
		s.dispatch.Lock()
		s.mu.Lock()
		flush := s.active
		s.active = nil
		s.stats.activeNotes.Store(0)
		s.mu.Unlock()
		for _, a := range flush {
			s.sendOff(a.channel, a.pitch)
		}
		s.dispatch.Unlock()

		s.log.Info("scheduler stopped", zap.Int("flushed", len(flush)))
		close(s.done)
	})
}

// Done returns a channel closed once the scheduler has stopped.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the engine counters.
func (s *Scheduler) Stats() Snapshot { return s.stats.Snapshot() }

// QueueDepth returns the number of pending note requests.
func (s *Scheduler) QueueDepth() int { return s.queue.Len() }

// tick advances engine time to now: due requests fire first, then notes
// whose duration has elapsed are released.
func (s *Scheduler) tick(now time.Time) {
	for _, req := range s.queue.PopDue(now) {
		s.fire(req, now)
	}
	s.stats.queueDepth.Store(int64(s.queue.Len()))

	s.dispatch.Lock()
	s.mu.Lock()
	var expired []activeNote
	kept := s.active[:0]
	for _, a := range s.active {
		if a.offAt.After(now) {
			kept = append(kept, a)
		} else {
			expired = append(expired, a)
		}
	}
	s.active = kept
	s.stats.activeNotes.Store(int64(len(s.active)))
	s.mu.Unlock()

	for _, a := range expired {
		s.sendOff(a.channel, a.pitch)
	}
	s.dispatch.Unlock()
}

// fire dispatches a note-on at now. If the pitch+channel is already
// sounding, its note-off is sent first (preemption) so no two active
// notes ever share a physical note. The dispatch mutex is held for the
// whole call; a concurrent Stop either finishes before the note is
// registered or flushes it afterwards, never in between.
func (s *Scheduler) fire(req NoteRequest, now time.Time) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	preempted := false
	for i := range s.active {
		if s.active[i].pitch == req.Pitch && s.active[i].channel == req.Channel {
			s.active = append(s.active[:i], s.active[i+1:]...)
			preempted = true
			break
		}
	}
	s.active = append(s.active, activeNote{
		pitch:   req.Pitch,
		channel: req.Channel,
		offAt:   now.Add(req.Duration),
	})
	s.stats.activeNotes.Store(int64(len(s.active)))
	s.mu.Unlock()

	if preempted {
		s.sendOff(req.Channel, req.Pitch)
	}
	if err := s.sink.NoteOn(req.Channel, req.Pitch, req.Velocity); err != nil {
		s.stats.sinkErrors.Add(1)
		// The note never sounded; drop its pending note-off.
		s.mu.Lock()
		for i := range s.active {
			if s.active[i].pitch == req.Pitch && s.active[i].channel == req.Channel {
				s.active = append(s.active[:i], s.active[i+1:]...)
				break
			}
		}
		s.stats.activeNotes.Store(int64(len(s.active)))
		s.mu.Unlock()
		s.log.Warn("note-on dispatch failed",
			zap.Uint8("pitch", req.Pitch),
			zap.Uint8("channel", req.Channel),
			zap.Error(err),
		)
		return
	}
	s.stats.fired.Add(1)
	s.log.Debug("note on",
		zap.Uint8("pitch", req.Pitch),
		zap.Uint8("velocity", req.Velocity),
		zap.Duration("delay", now.Sub(req.RequestedAt)),
	)
}

func (s *Scheduler) sendOff(channel, pitch uint8) {
	if err := s.sink.NoteOff(channel, pitch); err != nil {
		s.stats.sinkErrors.Add(1)
		s.log.Warn("note-off dispatch failed",
			zap.Uint8("pitch", pitch),
			zap.Uint8("channel", channel),
			zap.Error(err),
		)
	}
}

// finishIfDrained completes the Draining -> Stopped transition once the
// queue is empty and nothing is sounding.
func (s *Scheduler) finishIfDrained() bool {
	s.mu.Lock()
	drained := s.state == StateDraining && len(s.active) == 0 && s.queue.Len() == 0
	s.mu.Unlock()
	if !drained {
		return false
	}
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		s.log.Info("drain complete, scheduler stopped")
		close(s.done)
	})
	return true
}
