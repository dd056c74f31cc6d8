package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Clark-Hu/workshop-market/internal/domain"
)

// VehiclesRepository adds maintenance bookkeeping to the vehicle documents.
type VehiclesRepository struct {
	*Documents[domain.Vehicle]
}

// DueForService returns vehicles whose next service date is on or before the
// cutoff and that have not been reminded for that date yet. Vehicles whose
// last failed attempt is at or after retryBefore are skipped. Vehicles never
// attempted come first, then the oldest failures.
func (r *VehiclesRepository) DueForService(ctx context.Context, cutoff, retryBefore time.Time, limit int64) ([]domain.Vehicle, error) {
	filter := bson.M{
		"nextServiceDate": bson.M{"$lte": cutoff},
		"$expr":           bson.M{"$ne": bson.A{"$remindedFor", "$nextServiceDate"}},
		"$or": bson.A{
			bson.M{"lastAttemptAt": bson.M{"$exists": false}},
			bson.M{"lastAttemptAt": bson.M{"$lt": retryBefore}},
		},
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "lastAttemptAt", Value: 1},
		{Key: "nextServiceDate", Value: 1},
		{Key: "_id", Value: 1},
	})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find due vehicles: %w", err)
	}
	vehicles := make([]domain.Vehicle, 0)
	if err := cur.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("decode due vehicles: %w", err)
	}
	return vehicles, nil
}

// MarkReminded records that the owner was notified about the given due date.
func (r *VehiclesRepository) MarkReminded(ctx context.Context, v domain.Vehicle, at time.Time) error {
	if v.NextServiceDate == nil {
		return fmt.Errorf("vehicle %s has no service date", v.ID.Hex())
	}
	update := bson.M{
		"$set": bson.M{
			"lastRemindedAt": at,
			"remindedFor":    *v.NextServiceDate,
		},
		"$unset": bson.M{"lastAttemptAt": ""},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": v.ID}, update)
	if err != nil {
		return fmt.Errorf("mark vehicle %s reminded: %w", v.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAttempted records a failed reminder so the vehicle yields its place
// in the next sweeps.
func (r *VehiclesRepository) MarkAttempted(ctx context.Context, v domain.Vehicle, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": v.ID}, bson.M{"$set": bson.M{"lastAttemptAt": at}})
	if err != nil {
		return fmt.Errorf("mark vehicle %s attempted: %w", v.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
