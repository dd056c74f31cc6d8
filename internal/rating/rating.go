// Package rating keeps the denormalized averageRating/reviewCount pair on
// reviewable entities in step with the review store.
package rating

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/Clark-Hu/workshop-market/internal/domain"
	"github.com/Clark-Hu/workshop-market/internal/metrics"
)

// StatsSource reads the raw mean and count of a target's ratings.
type StatsSource interface {
	Stats(ctx context.Context, item domain.Target) (domain.RatingStats, error)
}

// Sink writes the aggregate pair onto the target entity.
type Sink interface {
	SetRating(ctx context.Context, target domain.Target, agg domain.AggregateRating) error
}

// Recalculator recomputes aggregates. Recalculations for the same target are
// serialized within the process; across processes the last write wins.
type Recalculator struct {
	stats  StatsSource
	sink   Sink
	logger *zap.Logger
	locks  keyedMutex
}

func NewRecalculator(stats StatsSource, sink Sink, logger *zap.Logger) *Recalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recalculator{stats: stats, sink: sink, logger: logger}
}

// Aggregate turns raw stats into the stored pair, rounding the mean to two
// decimals. No reviews means zero for both fields.
func Aggregate(stats domain.RatingStats) domain.AggregateRating {
	if stats.Count <= 0 {
		return domain.AggregateRating{}
	}
	return domain.AggregateRating{
		AverageRating: math.Round(stats.Average*100) / 100,
		ReviewCount:   stats.Count,
	}
}

// Recalculate recomputes and stores the target's aggregate.
func (r *Recalculator) Recalculate(ctx context.Context, target domain.Target) (domain.AggregateRating, error) {
	if !target.Type.Valid() {
		return domain.AggregateRating{}, fmt.Errorf("recalculate %s: unknown item type", target)
	}

	unlock := r.locks.lock(target.String())
	defer unlock()

	stats, err := r.stats.Stats(ctx, target)
	if err != nil {
		return domain.AggregateRating{}, fmt.Errorf("recalculate %s: %w", target, err)
	}
	agg := Aggregate(stats)
	if err := r.sink.SetRating(ctx, target, agg); err != nil {
		return domain.AggregateRating{}, fmt.Errorf("recalculate %s: %w", target, err)
	}
	return agg, nil
}

// Refresh is the best-effort form used after review mutations: failures are
// logged and counted but never returned.
func (r *Recalculator) Refresh(ctx context.Context, target domain.Target) {
	agg, err := r.Recalculate(ctx, target)
	if err != nil {
		metrics.RatingRecalculations.WithLabelValues(string(target.Type), metrics.OutcomeFailure).Inc()
		r.logger.Warn("rating recalculation failed",
			zap.String("item_type", string(target.Type)),
			zap.String("item_id", target.ID),
			zap.Error(err),
		)
		return
	}
	metrics.RatingRecalculations.WithLabelValues(string(target.Type), metrics.OutcomeSuccess).Inc()
	r.logger.Debug("rating recalculated",
		zap.String("item_type", string(target.Type)),
		zap.String("item_id", target.ID),
		zap.Float64("average", agg.AverageRating),
		zap.Int64("count", agg.ReviewCount),
	)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
