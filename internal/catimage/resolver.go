package catimage

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/cat-facts/internal/metrics"
)

// NoImageTier is reported to metrics when every source failed.
const NoImageTier = "none"

type Resolver struct {
	plan      Plan
	collector *metrics.Collector
	logger    *slog.Logger
	budget    time.Duration
	reserve   time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBudget bounds a whole resolution to total. The final source of the
// plan is always left at least reserve of it: earlier sources are cut off
// once less than reserve remains.
func WithBudget(total, reserve time.Duration) Option {
	return func(r *Resolver) {
		r.budget = total
		r.reserve = reserve
	}
}

func NewResolver(plan Plan, collector *metrics.Collector, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Resolver{
		plan:      plan,
		collector: collector,
		logger:    logger.With(slog.String("plan", plan.Name())),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.reserve >= r.budget {
		r.reserve = 0
	}

	return r
}

// Resolve returns the first valid candidate of the plan, or ErrNoImage.
// Each source is tried at most once.
func (r *Resolver) Resolve(ctx context.Context) (*Candidate, error) {
	sources := r.plan.Sources()

	budgetCtx := ctx
	if r.budget > 0 {
		var cancel context.CancelFunc
		budgetCtx, cancel = context.WithTimeout(ctx, r.budget)
		defer cancel()
	}

	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if budgetCtx.Err() != nil {
			break
		}

		final := i == len(sources)-1
		if !final && r.reserveReached(budgetCtx) {
			r.logger.Info("Image budget running out, skipping tier",
				slog.String("tier", source.Name()))
			continue
		}

		candidate, err := r.fetch(budgetCtx, source, final)
		if err == nil {
			err = Validate(candidate)
		}
		if err != nil {
			r.logger.Info("Image tier failed, trying next",
				slog.String("tier", source.Name()),
				slog.Int("remaining", len(sources)-i-1),
				slog.Any("err", err))
			continue
		}

		candidate.Tier = source.Name()
		if i > 0 {
			r.collector.Emit(metrics.MetricEvent{
				Type: metrics.EventFallbackUsed,
				Tier: source.Name(),
			})
		}

		r.logger.Debug("Image resolved",
			slog.String("tier", candidate.Tier),
			slog.String("source", candidate.SourceURL),
			slog.String("content_type", candidate.ContentType),
			slog.Int("bytes", len(candidate.Body)))

		return candidate, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.collector.Emit(metrics.MetricEvent{
		Type: metrics.EventFallbackUsed,
		Tier: NoImageTier,
	})
	r.logger.Warn("Every image tier failed", slog.Int("tiers", len(sources)))

	return nil, ErrNoImage
}

// fetch runs one source. Sources other than the final one must finish
// before the reserve starts.
func (r *Resolver) fetch(ctx context.Context, source Source, final bool) (*Candidate, error) {
	if final || r.reserve <= 0 {
		return source.Fetch(ctx)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		return source.Fetch(ctx)
	}

	tierCtx, cancel := context.WithDeadline(ctx, deadline.Add(-r.reserve))
	defer cancel()

	return source.Fetch(tierCtx)
}

func (r *Resolver) reserveReached(ctx context.Context) bool {
	if r.reserve <= 0 {
		return false
	}

	deadline, ok := ctx.Deadline()
	return ok && time.Until(deadline) <= r.reserve
}
