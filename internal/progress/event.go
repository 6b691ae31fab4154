package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageBatchStart    Stage = "BATCH_START"
	StageCandidateDone Stage = "CANDIDATE_DONE"
	StageBatchDone     Stage = "BATCH_DONE"
)

// Event is one progress observation for a batch.
type Event struct {
	// BatchID identifies the batch run in 16-byte UUID form.
	BatchID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Completed counts finished candidates, Total the batch size.
	Completed int
	Total     int
	// Dur is the elapsed batch time at the moment of the event.
	Dur time.Duration
	// Note carries low-volume context such as an outcome summary.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.BatchID == [16]byte{} {
		return errors.New("batch id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageBatchStart, StageBatchDone:
	case StageCandidateDone:
		if e.Completed < 1 {
			return errors.New("candidate done requires completed >= 1")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Total < 0 || e.Completed < 0 || e.Completed > e.Total {
		return fmt.Errorf("invalid counts %d/%d", e.Completed, e.Total)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// BatchUUID converts the binary batch ID to uuid.UUID.
func (e Event) BatchUUID() uuid.UUID {
	return uuid.UUID(e.BatchID)
}

// Fraction reports completion in [0,1]; an empty batch counts as complete.
func (e Event) Fraction() float64 {
	if e.Total == 0 {
		return 1
	}
	return float64(e.Completed) / float64(e.Total)
}
