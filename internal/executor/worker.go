package executor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/urlfinder/internal/metrics"
	"github.com/JakeFAU/urlfinder/internal/resolver"
)

var errNoStatus = errors.New("resolver returned no status")

// worker resolves candidates from a shared task channel.
type worker struct {
	id       int
	resolver Resolver
	logger   *zap.Logger
}

func newWorker(id int, r Resolver, logger *zap.Logger) *worker {
	return &worker{
		id:       id,
		resolver: r,
		logger:   logger.With(zap.Int("worker", id)),
	}
}

// run blocks until tasks is closed, emitting one outcome per task.
func (w *worker) run(ctx context.Context, tasks <-chan resolver.Candidate, results chan<- resolver.Outcome) {
	for c := range tasks {
		results <- w.process(ctx, c)
	}
}

// process resolves one candidate and counts the outcome, whatever its origin.
func (w *worker) process(ctx context.Context, c resolver.Candidate) (out resolver.Outcome) {
	defer func() { metrics.ObserveOutcome(string(out.Status)) }()
	if err := ctx.Err(); err != nil {
		return resolver.Errored(c.ID, err)
	}

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("candidate resolution panicked",
				zap.String("candidate_id", c.ID),
				zap.Any("panic", r),
			)
			out = resolver.Errored(c.ID, fmt.Errorf("panic: %v", r))
		}
	}()

	out = w.resolver.Resolve(ctx, c)
	out.ID = c.ID
	if out.Status == "" {
		out = resolver.Errored(c.ID, errNoStatus)
	}
	w.logger.Debug("candidate done",
		zap.String("candidate_id", c.ID),
		zap.String("status", string(out.Status)),
		zap.String("url", out.URL),
	)
	return out
}
