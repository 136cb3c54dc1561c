package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// IndexManager creates sparse ascending single-field indexes on registration collections.
type IndexManager struct {
	db     *mongo.Database
	tables func(string) string
}

func NewIndexManager(db *mongo.Database, tables func(string) string) *IndexManager {
	return &IndexManager{db: db, tables: tables}
}

func (m *IndexManager) CreateSparseIndex(ctx context.Context, collection, field, indexName string) error {
	_, err := m.db.Collection(m.tables(collection)).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetName(indexName).SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("create index %s on %s: %w", indexName, collection, err)
	}
	return nil
}

func (m *IndexManager) IndexExists(ctx context.Context, collection, indexName string) (bool, error) {
	specs, err := m.db.Collection(m.tables(collection)).Indexes().ListSpecifications(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range specs {
		if s.Name == indexName {
			return true, nil
		}
	}
	return false, nil
}

func (m *IndexManager) DropIndex(ctx context.Context, collection, indexName string) error {
	if err := m.db.Collection(m.tables(collection)).Indexes().DropOne(ctx, indexName); err != nil {
		return fmt.Errorf("drop index %s on %s: %w", indexName, collection, err)
	}
	return nil
}
