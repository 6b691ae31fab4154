package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/urlfinder/internal/progress"
)

// PrometheusSink exports batch progress via Prometheus collectors.
type PrometheusSink struct {
	batchesStarted      prometheus.Counter
	batchesCompleted    prometheus.Counter
	batchesRunning      prometheus.Gauge
	candidatesCompleted prometheus.Counter
	batchRuntime        prometheus.Histogram
	batchSize           prometheus.Histogram

	tracker *batchTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		batchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlfinder_batches_started_total",
			Help: "Total batches that have started.",
		}),
		batchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlfinder_batches_completed_total",
			Help: "Total batches that have finished.",
		}),
		batchesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "urlfinder_batches_running",
			Help: "Current number of running batches.",
		}),
		candidatesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlfinder_candidates_completed_total",
			Help: "Total candidates completed across batches.",
		}),
		batchRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "urlfinder_batch_runtime_seconds",
			Help:    "Wall time per completed batch.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "urlfinder_batch_size",
			Help:    "Number of candidates per started batch.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		tracker: newBatchTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.batchesStarted,
		s.batchesCompleted,
		s.batchesRunning,
		s.candidatesCompleted,
		s.batchRuntime,
		s.batchSize,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch. It is safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageBatchStart:
			s.batchesStarted.Inc()
			s.batchSize.Observe(float64(evt.Total))
			if s.tracker.start(evt.BatchID) {
				s.batchesRunning.Inc()
			}
		case progress.StageCandidateDone:
			s.candidatesCompleted.Inc()
		case progress.StageBatchDone:
			s.batchesCompleted.Inc()
			if evt.Dur > 0 {
				s.batchRuntime.Observe(evt.Dur.Seconds())
			}
			if s.tracker.complete(evt.BatchID) {
				s.batchesRunning.Dec()
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type batchTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newBatchTracker() *batchTracker {
	return &batchTracker{running: make(map[[16]byte]struct{})}
}

func (t *batchTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *batchTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
