package executor

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlfinder/internal/resolver"
)

// fakeResolver echoes each input as a resolved URL, tracking concurrency.
type fakeResolver struct {
	delay   time.Duration
	panicOn string
	active  atomic.Int64
	peak    atomic.Int64
	calls   atomic.Int64
	mutate  func(resolver.Outcome) resolver.Outcome
}

func (f *fakeResolver) Resolve(ctx context.Context, c resolver.Candidate) resolver.Outcome {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if c.Input == f.panicOn {
		panic("backend exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return resolver.Errored(c.ID, ctx.Err())
		}
	}
	out := resolver.Outcome{ID: c.ID, URL: "https://" + c.Input + ".example", Status: resolver.StatusResolved}
	if f.mutate != nil {
		out = f.mutate(out)
	}
	return out
}

func makeCandidates(n int) []resolver.Candidate {
	out := make([]resolver.Candidate, n)
	for i := range out {
		out[i] = resolver.Candidate{ID: strconv.Itoa(i), Input: "c" + strconv.Itoa(i)}
	}
	return out
}

type progressRecorder struct {
	mu    sync.Mutex
	calls [][2]int
}

func (p *progressRecorder) record(completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, [2]int{completed, total})
}

func TestExecutor_HundredCandidates(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{delay: 2 * time.Millisecond}
	exec := New(fake, Config{MaxParallelism: 8}, zap.NewNop())
	progress := &progressRecorder{}

	outcomes, err := exec.Run(context.Background(), makeCandidates(100), progress.record)

	require.NoError(t, err)
	require.Len(t, outcomes, 100)
	for i := 0; i < 100; i++ {
		id := strconv.Itoa(i)
		out, ok := outcomes[id]
		require.True(t, ok, id)
		require.Equal(t, id, out.ID)
		require.Equal(t, "https://c"+id+".example", out.URL)
	}
	require.Len(t, progress.calls, 100)
	for i, call := range progress.calls {
		require.Equal(t, i+1, call[0])
		require.Equal(t, 100, call[1])
	}
	require.LessOrEqual(t, fake.peak.Load(), int64(8))
	require.EqualValues(t, 100, fake.calls.Load())
}

func TestExecutor_PanicIsolatedToOneCandidate(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{panicOn: "c42"}
	exec := New(fake, Config{MaxParallelism: 8}, zap.NewNop())

	outcomes, err := exec.Run(context.Background(), makeCandidates(100), nil)

	require.NoError(t, err)
	require.Len(t, outcomes, 100)
	for id, out := range outcomes {
		if id == "42" {
			require.Equal(t, resolver.StatusErrored, out.Status)
			require.Contains(t, out.Error, "backend exploded")
			continue
		}
		require.Equal(t, resolver.StatusResolved, out.Status, id)
	}
}

func TestExecutor_ForcesCandidateIDs(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{mutate: func(o resolver.Outcome) resolver.Outcome {
		o.ID = "wrong"
		return o
	}}
	exec := New(fake, Config{MaxParallelism: 3}, zap.NewNop())

	outcomes, err := exec.Run(context.Background(), makeCandidates(10), nil)

	require.NoError(t, err)
	require.Len(t, outcomes, 10)
	require.NotContains(t, outcomes, "wrong")
	require.Equal(t, "3", outcomes["3"].ID)
}

func TestExecutor_EmptyStatusBecomesErrored(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{mutate: func(resolver.Outcome) resolver.Outcome {
		return resolver.Outcome{}
	}}
	outcomes, err := New(fake, Config{}, nil).Run(context.Background(), makeCandidates(2), nil)

	require.NoError(t, err)
	require.Equal(t, resolver.StatusErrored, outcomes["0"].Status)
	require.Equal(t, errNoStatus.Error(), outcomes["1"].Error)
}

// outcomeCount reads urlfinder_outcomes_total{status} from the default registry.
func outcomeCount(t *testing.T, status resolver.Status) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "urlfinder_outcomes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" && lp.GetValue() == string(status) {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

// Not parallel: counts are read from the shared registry.
func TestExecutor_CountsEveryOutcome(t *testing.T) {
	erroredBefore := outcomeCount(t, resolver.StatusErrored)
	resolvedBefore := outcomeCount(t, resolver.StatusResolved)

	fake := &fakeResolver{panicOn: "c3"}
	outcomes, err := New(fake, Config{MaxParallelism: 2}, zap.NewNop()).
		Run(context.Background(), makeCandidates(5), nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes, err = New(fake, Config{MaxParallelism: 2}, zap.NewNop()).Run(ctx, makeCandidates(3), nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	require.InDelta(t, 4, outcomeCount(t, resolver.StatusErrored)-erroredBefore, 1e-9)
	require.InDelta(t, 4, outcomeCount(t, resolver.StatusResolved)-resolvedBefore, 1e-9)
}

func TestExecutor_DuplicateIDs(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{}
	exec := New(fake, Config{MaxParallelism: 2}, zap.NewNop())
	candidates := []resolver.Candidate{{ID: "1", Input: "a"}, {ID: "1", Input: "b"}}

	outcomes, err := exec.Run(context.Background(), candidates, nil)

	require.Nil(t, outcomes)
	require.True(t, errors.Is(err, ErrDuplicateID))
	require.Zero(t, fake.calls.Load())
}

func TestExecutor_EmptyBatch(t *testing.T) {
	t.Parallel()

	exec := New(&fakeResolver{}, Config{MaxParallelism: 4}, zap.NewNop())
	progress := &progressRecorder{}

	outcomes, err := exec.Run(context.Background(), nil, progress.record)

	require.NoError(t, err)
	require.NotNil(t, outcomes)
	require.Empty(t, outcomes)
	require.Empty(t, progress.calls)
}

func TestExecutor_ClampsParallelism(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{delay: time.Millisecond}
	exec := New(fake, Config{MaxParallelism: 0}, zap.NewNop())
	require.Equal(t, 1, exec.MaxParallelism())

	outcomes, err := exec.Run(context.Background(), makeCandidates(5), nil)

	require.NoError(t, err)
	require.Len(t, outcomes, 5)
	require.EqualValues(t, 1, fake.peak.Load())

	wide := exec.WithParallelism(4)
	require.Equal(t, 4, wide.MaxParallelism())
	require.Equal(t, 1, exec.MaxParallelism())
	require.Same(t, exec, exec.WithParallelism(0))
}

func TestExecutor_CancellationStillYieldsEveryOutcome(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{delay: time.Hour}
	exec := New(fake, Config{MaxParallelism: 2}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	progress := &progressRecorder{}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	done := make(chan struct{})
	var (
		outcomes map[string]resolver.Outcome
		err      error
	)
	go func() {
		outcomes, err = exec.Run(ctx, makeCandidates(20), progress.record)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("executor did not stop after context cancel")
	}
	require.NoError(t, err)
	require.Len(t, outcomes, 20)
	for _, out := range outcomes {
		require.Equal(t, resolver.StatusErrored, out.Status)
		require.Equal(t, context.Canceled.Error(), out.Error)
	}
	require.Len(t, progress.calls, 20)
	require.LessOrEqual(t, fake.calls.Load(), int64(2))
}
