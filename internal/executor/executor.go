// Package executor runs the resolver over a batch of candidates on a bounded
// worker pool and reports progress as tasks complete.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/urlfinder/internal/resolver"
)

// DefaultMaxParallelism is used by callers that have no configured value.
const DefaultMaxParallelism = 8

// ErrDuplicateID is returned when two candidates in one batch share an ID.
var ErrDuplicateID = errors.New("duplicate candidate id")

// Resolver resolves one candidate. *resolver.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, c resolver.Candidate) resolver.Outcome
}

// ProgressFunc is invoked once per completed candidate with a strictly
// increasing completed count.
type ProgressFunc func(completed, total int)

// Config controls Executor behavior.
type Config struct {
	// MaxParallelism caps concurrent resolutions; values below 1 mean 1.
	MaxParallelism int
}

// Executor fans a batch out to workers and gathers keyed outcomes.
type Executor struct {
	resolver Resolver
	cfg      Config
	logger   *zap.Logger
}

// New constructs an Executor.
func New(r Resolver, cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxParallelism < 1 {
		cfg.MaxParallelism = 1
	}
	return &Executor{
		resolver: r,
		cfg:      cfg,
		logger:   logger.Named("executor"),
	}
}

// WithParallelism returns a copy of e using n workers. Non-positive n keeps
// the current setting.
func (e *Executor) WithParallelism(n int) *Executor {
	if n < 1 {
		return e
	}
	clone := *e
	clone.cfg.MaxParallelism = n
	return &clone
}

// MaxParallelism reports the configured worker cap.
func (e *Executor) MaxParallelism() int {
	return e.cfg.MaxParallelism
}

// Run resolves every candidate and returns their outcomes keyed by ID.
// Every candidate yields exactly one outcome, including when ctx ends early:
// candidates not yet started are marked errored with the context error.
// The only error returned is ErrDuplicateID, before any work starts.
func (e *Executor) Run(
	ctx context.Context,
	candidates []resolver.Candidate,
	onProgress ProgressFunc,
) (map[string]resolver.Outcome, error) {
	if err := checkUnique(candidates); err != nil {
		return nil, err
	}
	total := len(candidates)
	outcomes := make(map[string]resolver.Outcome, total)
	if total == 0 {
		return outcomes, nil
	}

	workers := e.cfg.MaxParallelism
	if workers > total {
		workers = total
	}
	start := time.Now()
	e.logger.Info("batch started", zap.Int("candidates", total), zap.Int("workers", workers))

	tasks := make(chan resolver.Candidate)
	results := make(chan resolver.Outcome, workers)

	var g errgroup.Group
	g.Go(func() error {
		defer close(tasks)
		for _, c := range candidates {
			tasks <- c
		}
		return nil
	})
	for i := 0; i < workers; i++ {
		w := newWorker(i, e.resolver, e.logger)
		g.Go(func() error {
			w.run(ctx, tasks, results)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	// Single writer: only this loop touches outcomes and the counter.
	completed := 0
	counts := make(map[resolver.Status]int, 3)
	for out := range results {
		outcomes[out.ID] = out
		counts[out.Status]++
		completed++
		if onProgress != nil {
			onProgress(completed, total)
		}
	}

	e.logger.Info("batch finished",
		zap.Int("candidates", total),
		zap.Int("resolved", counts[resolver.StatusResolved]),
		zap.Int("unresolved", counts[resolver.StatusUnresolved]),
		zap.Int("errored", counts[resolver.StatusErrored]),
		zap.Duration("duration", time.Since(start)),
	)
	return outcomes, nil
}

func checkUnique(candidates []resolver.Candidate) error {
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateID, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
