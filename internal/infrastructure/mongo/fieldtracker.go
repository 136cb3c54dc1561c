package mongo

import (
	"context"

	"github.com/expo-registration-api/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// FieldTrackerRepo records active dynamic fields, unique on (collection_name, field_name).
type FieldTrackerRepo struct {
	coll *mongo.Collection
}

func NewFieldTrackerRepo(db *mongo.Database, name string) *FieldTrackerRepo {
	return &FieldTrackerRepo{coll: db.Collection(name)}
}

func (r *FieldTrackerRepo) ListByCollection(ctx context.Context, collection string) ([]domain.DynamicField, error) {
	cur, err := r.coll.Find(ctx, bson.D{{Key: "collection_name", Value: collection}},
		options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}}))
	if err != nil {
		return nil, err
	}
	fields := []domain.DynamicField{}
	if err := cur.All(ctx, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (r *FieldTrackerRepo) Upsert(ctx context.Context, f *domain.DynamicField) error {
	_, err := r.coll.ReplaceOne(ctx, trackerKey(f.CollectionName, f.FieldName), f, options.Replace().SetUpsert(true))
	return err
}

func (r *FieldTrackerRepo) Delete(ctx context.Context, collection, fieldName string) error {
	_, err := r.coll.DeleteOne(ctx, trackerKey(collection, fieldName))
	return err
}

func trackerKey(collection, field string) bson.D {
	return bson.D{{Key: "collection_name", Value: collection}, {Key: "field_name", Value: field}}
}
