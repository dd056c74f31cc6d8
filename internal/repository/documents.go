package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Clark-Hu/workshop-market/internal/query"
)

// Fields a generic update never writes. The rating pair belongs to the
// recalculation and the id is immutable.
var immutableFields = []string{"_id", query.VersionField, "averageRating", "reviewCount"}

var hideVersion = bson.D{{Key: query.VersionField, Value: 0}}

// Documents is a typed view over one catalog collection.
type Documents[T any] struct {
	coll         *mongo.Collection
	searchFields []string
	// optional are the omitempty fields of T, cleared on update when empty.
	optional []string
}

// NewDocuments binds a collection. Without explicit search fields the default
// name/description pair is searched.
func NewDocuments[T any](coll *mongo.Collection, searchFields ...string) *Documents[T] {
	if len(searchFields) == 0 {
		searchFields = query.DefaultSearchFields
	}
	return &Documents[T]{
		coll:         coll,
		searchFields: searchFields,
		optional:     omitEmptyFields(reflect.TypeOf((*T)(nil)).Elem()),
	}
}

// omitEmptyFields lists the bson names of omitempty fields, following
// inline structs.
func omitEmptyFields(t reflect.Type) []string {
	if t.Kind() != reflect.Struct {
		return nil
	}
	var names []string
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tags, err := bsoncodec.DefaultStructTagParser.ParseStructTags(sf)
		if err != nil || tags.Skip {
			continue
		}
		if tags.Inline {
			names = append(names, omitEmptyFields(sf.Type)...)
			continue
		}
		if tags.OmitEmpty && !slices.Contains(immutableFields, tags.Name) {
			names = append(names, tags.Name)
		}
	}
	return names
}

// Name returns the collection name.
func (d *Documents[T]) Name() string {
	return d.coll.Name()
}

// SearchFields lists the fields the search parameter matches against.
func (d *Documents[T]) SearchFields() []string {
	return d.searchFields
}

// List executes a list query plan.
func (d *Documents[T]) List(ctx context.Context, plan query.Plan) ([]T, error) {
	cur, err := d.coll.Find(ctx, plan.Filter(), plan.FindOptions())
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", d.Name(), err)
	}
	items := make([]T, 0)
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.Name(), err)
	}
	return items, nil
}

// Get fetches a document by its hex id. Malformed ids are reported as not found.
func (d *Documents[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return out, ErrNotFound
	}
	err = d.coll.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(hideVersion)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, ErrNotFound
	}
	if err != nil {
		return out, fmt.Errorf("get %s %s: %w", d.Name(), id, err)
	}
	return out, nil
}

// Create inserts the document and returns its new id.
func (d *Documents[T]) Create(ctx context.Context, doc *T) (string, error) {
	res, err := d.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", d.Name(), err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert %s: unexpected id type %T", d.Name(), res.InsertedID)
	}
	return oid.Hex(), nil
}

// Update writes every field of doc except the immutable ones, removes
// optional fields left empty, bumps the revision counter and returns the
// stored document.
func (d *Documents[T]) Update(ctx context.Context, id string, doc *T) (T, error) {
	var out T
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return out, ErrNotFound
	}

	raw, err := bson.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("encode %s: %w", d.Name(), err)
	}
	fields := bson.M{}
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return out, fmt.Errorf("encode %s: %w", d.Name(), err)
	}
	for _, name := range immutableFields {
		delete(fields, name)
	}
	fields["updatedAt"] = time.Now().UTC()

	update := bson.M{
		"$set": fields,
		"$inc": bson.M{query.VersionField: 1},
	}
	if cleared := d.clearedFields(fields); len(cleared) > 0 {
		update["$unset"] = cleared
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(hideVersion)
	err = d.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, ErrNotFound
	}
	if err != nil {
		return out, fmt.Errorf("update %s %s: %w", d.Name(), id, err)
	}
	return out, nil
}

// clearedFields returns the optional fields the encoder left out of set, so
// an update can empty them.
func (d *Documents[T]) clearedFields(set bson.M) bson.M {
	cleared := bson.M{}
	for _, name := range d.optional {
		if _, ok := set[name]; !ok {
			cleared[name] = ""
		}
	}
	return cleared
}

// Delete removes a document by id.
func (d *Documents[T]) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := d.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", d.Name(), id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
