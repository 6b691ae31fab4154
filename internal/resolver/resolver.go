package resolver

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Query templates. The placeholder is replaced with the trimmed input.
const (
	NamePlaceholder      = "{name}"
	DefaultQueryTemplate = NamePlaceholder + " official site"
	DomainQueryTemplate  = NamePlaceholder
)

// Options tunes a Resolver.
type Options struct {
	// QueryTemplate builds the search text; empty means DefaultQueryTemplate.
	QueryTemplate string
	// Validator filters backend results; nil accepts everything.
	Validator Validator
	// OnExhausted decides the outcome when no backend result is accepted.
	OnExhausted ExhaustionPolicy
}

// Resolver walks its backends in priority order for one candidate at a time.
// It holds no per-candidate state and is safe for concurrent use.
type Resolver struct {
	backends []Backend
	opts     Options
	logger   *zap.Logger
}

// New builds a Resolver over backends, tried in the given order.
func New(backends []Backend, opts Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QueryTemplate == "" {
		opts.QueryTemplate = DefaultQueryTemplate
	}
	ordered := make([]Backend, len(backends))
	copy(ordered, backends)
	return &Resolver{
		backends: ordered,
		opts:     opts,
		logger:   logger.Named("resolver"),
	}
}

// Backends returns the names of the configured backends in priority order.
func (r *Resolver) Backends() []string {
	names := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		names = append(names, b.Name())
	}
	return names
}

// Resolve produces the outcome for c. It never panics on behalf of the
// resolver itself, but a misbehaving Backend may; the executor guards that.
func (r *Resolver) Resolve(ctx context.Context, c Candidate) Outcome {
	input := strings.TrimSpace(c.Input)
	if input == "" {
		return Errored(c.ID, ErrEmptyInput)
	}
	logger := r.logger.With(zap.String("candidate_id", c.ID))
	text := r.SearchText(input)
	probe := Candidate{ID: c.ID, Input: input}

	for _, b := range r.backends {
		if err := ctx.Err(); err != nil {
			return Errored(c.ID, err)
		}
		res := b.Query(ctx, text)
		if !res.Found || res.URL == "" {
			logger.Debug("backend returned nothing", zap.String("engine", b.Name()))
			continue
		}
		if r.opts.Validator != nil && !r.opts.Validator(probe, res.URL) {
			logger.Debug("backend result rejected",
				zap.String("engine", b.Name()),
				zap.String("url", res.URL),
			)
			continue
		}
		resolved := Normalize(res.URL)
		logger.Debug("candidate resolved",
			zap.String("engine", b.Name()),
			zap.String("url", resolved),
		)
		return Outcome{ID: c.ID, URL: resolved, Status: StatusResolved, Engine: b.Name()}
	}

	if err := ctx.Err(); err != nil {
		return Errored(c.ID, err)
	}
	if r.opts.OnExhausted == ExhaustError {
		return Errored(c.ID, ErrExhausted)
	}
	return Outcome{ID: c.ID, URL: Normalize(input), Status: StatusUnresolved}
}

// SearchText renders the query template for input.
func (r *Resolver) SearchText(input string) string {
	return strings.ReplaceAll(r.opts.QueryTemplate, NamePlaceholder, input)
}
