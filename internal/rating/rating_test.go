package rating

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Clark-Hu/workshop-market/internal/domain"
)

type fakeStats struct {
	stats domain.RatingStats
	err   error
}

func (f fakeStats) Stats(context.Context, domain.Target) (domain.RatingStats, error) {
	return f.stats, f.err
}

type fakeSink struct {
	mu      sync.Mutex
	written map[domain.Target]domain.AggregateRating
	err     error
}

func (f *fakeSink) SetRating(_ context.Context, target domain.Target, agg domain.AggregateRating) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.written == nil {
		f.written = map[domain.Target]domain.AggregateRating{}
	}
	f.written[target] = agg
	return nil
}

var tutorial = domain.Target{ID: "t1", Type: domain.KindTutorial}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name  string
		stats domain.RatingStats
		want  domain.AggregateRating
	}{
		{"no reviews", domain.RatingStats{}, domain.AggregateRating{}},
		{"single", domain.RatingStats{Average: 5, Count: 1}, domain.AggregateRating{AverageRating: 5, ReviewCount: 1}},
		{"rounds down", domain.RatingStats{Average: 13.0 / 3.0, Count: 3}, domain.AggregateRating{AverageRating: 4.33, ReviewCount: 3}},
		{"rounds up", domain.RatingStats{Average: 11.0 / 3.0, Count: 3}, domain.AggregateRating{AverageRating: 3.67, ReviewCount: 3}},
		{"stale mean with zero count", domain.RatingStats{Average: 3, Count: 0}, domain.AggregateRating{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.stats))
		})
	}
}

func TestRecalculateWritesAggregate(t *testing.T) {
	sink := &fakeSink{}
	r := NewRecalculator(fakeStats{stats: domain.RatingStats{Average: 13.0 / 3.0, Count: 3}}, sink, zap.NewNop())

	agg, err := r.Recalculate(context.Background(), tutorial)
	require.NoError(t, err)
	assert.Equal(t, domain.AggregateRating{AverageRating: 4.33, ReviewCount: 3}, agg)
	assert.Equal(t, agg, sink.written[tutorial])
}

func TestRecalculateIsIdempotent(t *testing.T) {
	sink := &fakeSink{}
	r := NewRecalculator(fakeStats{stats: domain.RatingStats{Average: 11.0 / 3.0, Count: 3}}, sink, zap.NewNop())

	first, err := r.Recalculate(context.Background(), tutorial)
	require.NoError(t, err)
	stored := sink.written[tutorial]

	second, err := r.Recalculate(context.Background(), tutorial)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, stored, sink.written[tutorial])
	assert.Len(t, sink.written, 1)
}

func TestRecalculateResetsOnZero(t *testing.T) {
	sink := &fakeSink{written: map[domain.Target]domain.AggregateRating{
		tutorial: {AverageRating: 4, ReviewCount: 1},
	}}
	r := NewRecalculator(fakeStats{}, sink, nil)

	_, err := r.Recalculate(context.Background(), tutorial)
	require.NoError(t, err)
	assert.Equal(t, domain.AggregateRating{}, sink.written[tutorial])
}

func TestRecalculateRejectsUnknownKind(t *testing.T) {
	r := NewRecalculator(fakeStats{}, &fakeSink{}, nil)
	_, err := r.Recalculate(context.Background(), domain.Target{ID: "x", Type: "Vehicle"})
	assert.Error(t, err)
}

func TestRefreshSwallowsFailures(t *testing.T) {
	tests := []struct {
		name  string
		stats StatsSource
		sink  *fakeSink
	}{
		{"stats failure", fakeStats{err: errors.New("db down")}, &fakeSink{}},
		{"sink failure", fakeStats{stats: domain.RatingStats{Average: 4, Count: 1}}, &fakeSink{err: errors.New("mongo down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			r := NewRecalculator(tt.stats, tt.sink, zap.New(core))

			assert.NotPanics(t, func() { r.Refresh(context.Background(), tutorial) })
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, "rating recalculation failed", entry.Message)
			assert.Equal(t, "t1", entry.ContextMap()["item_id"])
		})
	}
}

type slowStats struct {
	active  int32
	overlap int32
}

func (s *slowStats) Stats(context.Context, domain.Target) (domain.RatingStats, error) {
	if atomic.AddInt32(&s.active, 1) > 1 {
		atomic.StoreInt32(&s.overlap, 1)
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&s.active, -1)
	return domain.RatingStats{Average: 4, Count: 1}, nil
}

func TestRecalculateSerializesPerTarget(t *testing.T) {
	stats := &slowStats{}
	r := NewRecalculator(stats, &fakeSink{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Refresh(context.Background(), tutorial)
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&stats.overlap))
	assert.Empty(t, r.locks.locks)
}
