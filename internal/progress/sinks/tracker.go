package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/urlfinder/internal/progress"
)

const defaultTrackerLimit = 256

// BatchStatus is the latest known state of one batch.
type BatchStatus struct {
	BatchID   string        `json:"batch_id"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Done      bool          `json:"done"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Note      string        `json:"note,omitempty"`
}

// TrackerSink keeps the latest status of recent batches in memory so the API
// can answer progress queries. The oldest batches are evicted past limit.
type TrackerSink struct {
	mu      sync.RWMutex
	limit   int
	batches map[[16]byte]*BatchStatus
	order   [][16]byte
}

// NewTrackerSink creates a tracker remembering up to limit batches.
func NewTrackerSink(limit int) *TrackerSink {
	if limit <= 0 {
		limit = defaultTrackerLimit
	}
	return &TrackerSink{
		limit:   limit,
		batches: make(map[[16]byte]*BatchStatus, limit),
	}
}

// Consume folds events into the per-batch status.
func (s *TrackerSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		st := s.lookupOrCreate(evt)
		if evt.Completed > st.Completed {
			st.Completed = evt.Completed
		}
		st.Total = evt.Total
		if evt.TS.After(st.UpdatedAt) {
			st.UpdatedAt = evt.TS
		}
		if evt.Dur > st.Elapsed {
			st.Elapsed = evt.Dur
		}
		switch evt.Stage {
		case progress.StageBatchStart:
			st.StartedAt = evt.TS
		case progress.StageBatchDone:
			st.Done = true
			st.Note = evt.Note
		}
	}
	return nil
}

func (s *TrackerSink) lookupOrCreate(evt progress.Event) *BatchStatus {
	if st, ok := s.batches[evt.BatchID]; ok {
		return st
	}
	for len(s.order) >= s.limit {
		delete(s.batches, s.order[0])
		s.order = s.order[1:]
	}
	st := &BatchStatus{BatchID: evt.BatchUUID().String(), StartedAt: evt.TS}
	s.batches[evt.BatchID] = st
	s.order = append(s.order, evt.BatchID)
	return st
}

// Get returns the status of one batch.
func (s *TrackerSink) Get(id uuid.UUID) (BatchStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.batches[id]
	if !ok {
		return BatchStatus{}, false
	}
	return *st, true
}

// List returns known batches, most recent first.
func (s *TrackerSink) List() []BatchStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BatchStatus, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.batches[s.order[i]])
	}
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *TrackerSink) Close(context.Context) error {
	return nil
}
