package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Reporter turns one batch's (completed, total) callbacks into Events.
type Reporter struct {
	emitter Emitter
	batchID uuid.UUID
	now     func() time.Time

	mu        sync.Mutex
	started   time.Time
	completed int
	total     int
}

// NewReporter creates a Reporter for a batch of total candidates. A nil
// emitter turns the Reporter into a pure counter.
func NewReporter(emitter Emitter, batchID uuid.UUID, total int) *Reporter {
	return &Reporter{
		emitter: emitter,
		batchID: batchID,
		now:     func() time.Time { return time.Now().UTC() },
		total:   total,
	}
}

// BatchID returns the batch identifier.
func (r *Reporter) BatchID() uuid.UUID {
	return r.batchID
}

// Start records the batch start.
func (r *Reporter) Start() {
	r.mu.Lock()
	ts := r.now()
	r.started = ts
	evt := r.event(StageBatchStart, "", ts)
	r.mu.Unlock()
	r.emit(evt)
}

// Observe matches the executor's progress callback signature.
func (r *Reporter) Observe(completed, total int) {
	r.mu.Lock()
	if completed <= r.completed {
		r.mu.Unlock()
		return
	}
	r.completed, r.total = completed, total
	evt := r.event(StageCandidateDone, "", r.now())
	r.mu.Unlock()
	r.emit(evt)
}

// Done records the batch end with an optional summary note.
func (r *Reporter) Done(note string) {
	r.mu.Lock()
	evt := r.event(StageBatchDone, note, r.now())
	r.mu.Unlock()
	r.emit(evt)
}

// Snapshot returns the latest completed and total counts.
func (r *Reporter) Snapshot() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed, r.total
}

func (r *Reporter) event(stage Stage, note string, ts time.Time) Event {
	var dur time.Duration
	if !r.started.IsZero() && ts.After(r.started) {
		dur = ts.Sub(r.started)
	}
	return Event{
		BatchID:   r.batchID,
		TS:        ts,
		Stage:     stage,
		Completed: r.completed,
		Total:     r.total,
		Dur:       dur,
		Note:      note,
	}
}

func (r *Reporter) emit(evt Event) {
	if r.emitter != nil {
		r.emitter.Emit(evt)
	}
}
