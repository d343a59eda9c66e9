package sequencer

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// NoteQueue is a bounded buffer of pending note requests ordered by
// QuantizedAt (insertion order wins between equal timestamps). It is the
// only structure shared between the ingestion flow and the scheduling
// flow; its lock is never held across a sink dispatch.
type NoteQueue struct {
	mu       sync.Mutex
	entries  []queueEntry
	capacity int
	seq      uint64
}

type queueEntry struct {
	req NoteRequest
	seq uint64 // insertion counter: breaks timestamp ties and picks evictions
}

// NewNoteQueue creates a queue holding at most capacity pending requests.
func NewNoteQueue(capacity int) (*NoteQueue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: max queue size %d must be positive", ErrInvalidConfig, capacity)
	}
	return &NoteQueue{
		entries:  make([]queueEntry, 0, capacity),
		capacity: capacity,
	}, nil
}

// Enqueue inserts req keeping QuantizedAt order. A pending request for
// the same pitch and channel is merged in place (a pitch cannot sound
// twice before it has fired once). When the queue is full the
// oldest-inserted entry is evicted so the audible result tracks recent
// activity rather than stale backlog.
func (q *NoteQueue) Enqueue(req NoteRequest) EnqueueResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.entries {
		e := &q.entries[i]
		if e.req.Pitch == req.Pitch && e.req.Channel == req.Channel {
			e.req.Velocity = req.Velocity
			e.req.Duration = req.Duration
			return EnqueueResult{Outcome: MergedDuplicate}
		}
	}

	var evicted *NoteRequest
	if len(q.entries) == q.capacity {
		oldest := 0
		for i := range q.entries {
			if q.entries[i].seq < q.entries[oldest].seq {
				oldest = i
			}
		}
		dropped := q.entries[oldest].req
		evicted = &dropped
		q.entries = append(q.entries[:oldest], q.entries[oldest+1:]...)
	}

	q.seq++
	entry := queueEntry{req: req, seq: q.seq}
	// Insert after every entry with QuantizedAt <= req.QuantizedAt to keep
	// ties in arrival order.
	i := sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].req.QuantizedAt.After(req.QuantizedAt)
	})
	q.entries = append(q.entries, queueEntry{})
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = entry

	if evicted != nil {
		return EnqueueResult{Outcome: EnqueuedWithEviction, Evicted: evicted}
	}
	return EnqueueResult{Outcome: Enqueued}
}

// PopDue removes and returns every entry with QuantizedAt <= now, in
// fire order. Later entries remain queued.
func (q *NoteQueue) PopDue(now time.Time) []NoteRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].req.QuantizedAt.After(now)
	})
	if n == 0 {
		return nil
	}
	due := make([]NoteRequest, n)
	for i := 0; i < n; i++ {
		due[i] = q.entries[i].req
	}
	q.entries = append(q.entries[:0], q.entries[n:]...)
	return due
}

// Len returns the number of pending requests.
func (q *NoteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
