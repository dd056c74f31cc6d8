// Package reminder notifies vehicle owners ahead of scheduled maintenance.
package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/workshop-market/internal/domain"
	"github.com/Clark-Hu/workshop-market/internal/metrics"
	"github.com/Clark-Hu/workshop-market/internal/notify"
)

const (
	defaultBatchSize    = 500
	defaultRetryBackoff = 6 * time.Hour
	sweepTimeout        = 2 * time.Minute
)

// Vehicles is the vehicle bookkeeping the sweep needs.
type Vehicles interface {
	DueForService(ctx context.Context, cutoff, retryBefore time.Time, limit int64) ([]domain.Vehicle, error)
	MarkReminded(ctx context.Context, v domain.Vehicle, at time.Time) error
	MarkAttempted(ctx context.Context, v domain.Vehicle, at time.Time) error
}

// Result summarizes one sweep.
type Result struct {
	Scanned int
	Sent    int
	Failed  int
}

// Sweeper sends one reminder per vehicle per due date.
type Sweeper struct {
	vehicles     Vehicles
	notifier     notify.Client
	logger       *zap.Logger
	leadTime     time.Duration
	retryBackoff time.Duration
	batchSize    int64
	now          func() time.Time
}

func NewSweeper(vehicles Vehicles, notifier notify.Client, leadDays int, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		vehicles:     vehicles,
		notifier:     notifier,
		logger:       logger,
		leadTime:     time.Duration(leadDays) * 24 * time.Hour,
		retryBackoff: defaultRetryBackoff,
		batchSize:    defaultBatchSize,
		now:          time.Now,
	}
}

// Run performs a single sweep. A failure for one vehicle is logged, counted
// and recorded on the vehicle, which is then left out of sweeps for the
// retry backoff. Only a failed scan aborts.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	now := s.now().UTC()
	due, err := s.vehicles.DueForService(ctx, now.Add(s.leadTime), now.Add(-s.retryBackoff), s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("scan vehicles: %w", err)
	}

	res := Result{Scanned: len(due)}
	for _, v := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.remind(ctx, v, now); err != nil {
			res.Failed++
			metrics.Reminders.WithLabelValues(metrics.OutcomeFailure).Inc()
			s.logger.Warn("maintenance reminder failed",
				zap.String("vehicle_id", v.ID.Hex()),
				zap.String("owner_id", v.OwnerID),
				zap.Bool("rejected", notify.IsRejected(err)),
				zap.Error(err),
			)
			if err := s.vehicles.MarkAttempted(ctx, v, now); err != nil {
				s.logger.Warn("record reminder attempt", zap.String("vehicle_id", v.ID.Hex()), zap.Error(err))
			}
			continue
		}
		res.Sent++
		metrics.Reminders.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}
	return res, nil
}

func (s *Sweeper) remind(ctx context.Context, v domain.Vehicle, now time.Time) error {
	if v.NextServiceDate == nil {
		return fmt.Errorf("vehicle has no service date")
	}
	due := v.NextServiceDate.UTC()
	_, err := s.notifier.Send(ctx, notify.Message{
		UserID: v.OwnerID,
		Title:  "Maintenance reminder",
		Body:   reminderBody(v, due, now),
		Data: map[string]string{
			"vehicleId":       v.ID.Hex(),
			"nextServiceDate": due.Format(time.DateOnly),
		},
		Key: v.ID.Hex() + ":" + due.Format(time.DateOnly),
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := s.vehicles.MarkReminded(ctx, v, now); err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	return nil
}

func reminderBody(v domain.Vehicle, due, now time.Time) string {
	name := v.DisplayName()
	if name == "" {
		name = "Your vehicle"
	}
	if due.Before(now) {
		return fmt.Sprintf("%s was due for service on %s.", name, due.Format(time.DateOnly))
	}
	return fmt.Sprintf("%s is due for service on %s.", name, due.Format(time.DateOnly))
}

// Start runs a sweep immediately and then every interval until ctx ends.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		run := func() {
			runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
			defer cancel()

			res, err := s.Run(runCtx)
			if err != nil {
				s.logger.Error("maintenance sweep failed", zap.Error(err))
				return
			}
			if res.Scanned > 0 {
				s.logger.Info("maintenance sweep finished",
					zap.Int("scanned", res.Scanned),
					zap.Int("sent", res.Sent),
					zap.Int("failed", res.Failed),
				)
			}
		}

		run()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
