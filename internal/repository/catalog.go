package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Clark-Hu/workshop-market/internal/domain"
)

// Catalog addresses reviewable entities by (id, kind) regardless of collection.
type Catalog struct {
	db *mongo.Database
}

// NewCatalog binds the catalog database.
func NewCatalog(db *mongo.Database) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) collection(target domain.Target) (*mongo.Collection, primitive.ObjectID, error) {
	name, err := CollectionFor(target.Type)
	if err != nil {
		return nil, primitive.NilObjectID, err
	}
	oid, err := primitive.ObjectIDFromHex(target.ID)
	if err != nil {
		return nil, primitive.NilObjectID, ErrNotFound
	}
	return c.db.Collection(name), oid, nil
}

// Exists reports whether the target entity is present.
func (c *Catalog) Exists(ctx context.Context, target domain.Target) (bool, error) {
	coll, oid, err := c.collection(target)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	n, err := coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", target, err)
	}
	return n > 0, nil
}

// SetRating overwrites the denormalized rating pair on the target. No other
// field is touched and the revision counter is left alone.
func (c *Catalog) SetRating(ctx context.Context, target domain.Target, agg domain.AggregateRating) error {
	coll, oid, err := c.collection(target)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"averageRating": agg.AverageRating,
		"reviewCount":   agg.ReviewCount,
	}}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("set rating on %s: %w", target, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
