package sequencer

import (
	"testing"
	"time"
)

func reqAt(pitch uint8, at time.Time) NoteRequest {
	return NoteRequest{
		Pitch:       pitch,
		Velocity:    100,
		Channel:     0,
		RequestedAt: at,
		QuantizedAt: at,
		Duration:    time.Second,
	}
}

func TestNewNoteQueueRejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := NewNoteQueue(capacity); err == nil {
			t.Errorf("NewNoteQueue(%d) succeeded, want error", capacity)
		}
	}
}

func TestEnqueueKeepsFireOrder(t *testing.T) {
	q, err := NewNoteQueue(10)
	if err != nil {
		t.Fatal(err)
	}

	for _, offset := range []time.Duration{5 * time.Second, time.Second, 3 * time.Second, 2 * time.Second} {
		q.Enqueue(reqAt(uint8(offset/time.Second), epoch.Add(offset)))
	}

	due := q.PopDue(epoch.Add(time.Hour))
	if len(due) != 4 {
		t.Fatalf("PopDue returned %d entries, want 4", len(due))
	}
	for i := 1; i < len(due); i++ {
		if due[i].QuantizedAt.Before(due[i-1].QuantizedAt) {
			t.Errorf("entry %d fires at %v before entry %d at %v",
				i, due[i].QuantizedAt, i-1, due[i-1].QuantizedAt)
		}
	}
}

func TestEnqueueTiesKeepArrivalOrder(t *testing.T) {
	q, err := NewNoteQueue(10)
	if err != nil {
		t.Fatal(err)
	}

	at := epoch.Add(time.Second)
	for _, pitch := range []uint8{60, 64, 67} {
		q.Enqueue(reqAt(pitch, at))
	}

	due := q.PopDue(at)
	want := []uint8{60, 64, 67}
	for i, req := range due {
		if req.Pitch != want[i] {
			t.Errorf("position %d: pitch %d, want %d", i, req.Pitch, want[i])
		}
	}
}

func TestEnqueueOverflowEvictsOldestInserted(t *testing.T) {
	q, err := NewNoteQueue(2)
	if err != nil {
		t.Fatal(err)
	}

	// Fire times arrive out of order: 5s, 3s, then 4s into a full queue.
	q.Enqueue(reqAt(50, epoch.Add(5*time.Second)))
	q.Enqueue(reqAt(30, epoch.Add(3*time.Second)))

	res := q.Enqueue(reqAt(40, epoch.Add(4*time.Second)))
	if res.Outcome != EnqueuedWithEviction {
		t.Fatalf("outcome = %v, want EnqueuedWithEviction", res.Outcome)
	}
	if res.Evicted == nil || res.Evicted.Pitch != 50 {
		t.Fatalf("evicted = %+v, want the oldest-inserted entry (pitch 50)", res.Evicted)
	}
	if q.Len() != 2 {
		t.Fatalf("queue size %d after overflow enqueue, want 2", q.Len())
	}

	due := q.PopDue(epoch.Add(time.Hour))
	if due[0].Pitch != 30 || due[1].Pitch != 40 {
		t.Errorf("remaining entries fire as %d,%d; want 30,40", due[0].Pitch, due[1].Pitch)
	}
}

func TestEnqueueOverflowAlwaysEvictsExactlyOne(t *testing.T) {
	q, err := NewNoteQueue(3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		q.Enqueue(reqAt(uint8(10+i), epoch.Add(time.Duration(i)*time.Second)))
	}

	for i := 0; i < 5; i++ {
		res := q.Enqueue(reqAt(uint8(100+i), epoch.Add(time.Duration(10+i)*time.Second)))
		if res.Outcome != EnqueuedWithEviction || res.Evicted == nil {
			t.Fatalf("enqueue %d into full queue: outcome %v, evicted %v", i, res.Outcome, res.Evicted)
		}
		if q.Len() != 3 {
			t.Fatalf("queue size %d after overflow enqueue, want 3", q.Len())
		}
	}
}

func TestEnqueueMergesPendingDuplicate(t *testing.T) {
	q, err := NewNoteQueue(10)
	if err != nil {
		t.Fatal(err)
	}

	first := reqAt(60, epoch.Add(time.Second))
	first.Velocity = 80
	first.Duration = time.Second
	q.Enqueue(first)

	second := reqAt(60, epoch.Add(2*time.Second))
	second.Velocity = 120
	second.Duration = 3 * time.Second
	res := q.Enqueue(second)

	if res.Outcome != MergedDuplicate {
		t.Fatalf("outcome = %v, want MergedDuplicate", res.Outcome)
	}
	if q.Len() != 1 {
		t.Fatalf("queue size %d after merge, want 1", q.Len())
	}

	due := q.PopDue(epoch.Add(time.Second))
	if len(due) != 1 {
		t.Fatalf("merged entry kept the original fire time, got %d due entries", len(due))
	}
	if due[0].Velocity != 120 || due[0].Duration != 3*time.Second {
		t.Errorf("merge kept velocity=%d duration=%v, want the newer 120/3s", due[0].Velocity, due[0].Duration)
	}
}

func TestEnqueueSamePitchDifferentChannelNotMerged(t *testing.T) {
	q, err := NewNoteQueue(10)
	if err != nil {
		t.Fatal(err)
	}

	a := reqAt(60, epoch.Add(time.Second))
	b := reqAt(60, epoch.Add(time.Second))
	b.Channel = 5

	q.Enqueue(a)
	if res := q.Enqueue(b); res.Outcome != Enqueued {
		t.Errorf("outcome = %v, want Enqueued for a different channel", res.Outcome)
	}
	if q.Len() != 2 {
		t.Errorf("queue size %d, want 2", q.Len())
	}
}

func TestPopDueLeavesFutureEntries(t *testing.T) {
	q, err := NewNoteQueue(10)
	if err != nil {
		t.Fatal(err)
	}

	q.Enqueue(reqAt(1, epoch.Add(time.Second)))
	q.Enqueue(reqAt(2, epoch.Add(2*time.Second)))
	q.Enqueue(reqAt(3, epoch.Add(3*time.Second)))

	due := q.PopDue(epoch.Add(2 * time.Second))
	if len(due) != 2 {
		t.Fatalf("PopDue(+2s) returned %d entries, want 2 (boundary is inclusive)", len(due))
	}
	if q.Len() != 1 {
		t.Fatalf("queue size %d after PopDue, want 1", q.Len())
	}

	// A second call advances past the already-returned entries.
	if again := q.PopDue(epoch.Add(2 * time.Second)); len(again) != 0 {
		t.Errorf("second PopDue returned %d entries, want 0", len(again))
	}
	rest := q.PopDue(epoch.Add(3 * time.Second))
	if len(rest) != 1 || rest[0].Pitch != 3 {
		t.Errorf("final PopDue = %+v, want the pitch-3 entry", rest)
	}
}
