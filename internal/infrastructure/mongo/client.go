package mongo

import (
	"context"
	"fmt"

	"github.com/expo-registration-api/internal/config"
	"github.com/expo-registration-api/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// Connect opens a client and verifies the server is reachable. Embedded
// documents decode as bson.M so dynamic answers serialize as plain JSON objects.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Bootstrap creates the fixed indexes. Dynamic-field indexes are managed by IndexManager.
func Bootstrap(ctx context.Context, db *mongo.Database, tables func(string) string, log *zap.Logger) {
	for _, rt := range domain.RegistrationTypes() {
		ensureIndex(ctx, db.Collection(tables(rt.Collection())), log, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_1"),
		})
	}
	ensureIndex(ctx, db.Collection(tables(config.CollectionDynamicFields)), log, mongo.IndexModel{
		Keys:    bson.D{{Key: "collection_name", Value: 1}, {Key: "field_name", Value: 1}},
		Options: options.Index().SetName("collection_field_unique").SetUnique(true),
	})
}

func ensureIndex(ctx context.Context, coll *mongo.Collection, log *zap.Logger, model mongo.IndexModel) {
	name, err := coll.Indexes().CreateOne(ctx, model)
	if err != nil {
		log.Warn("could not create index", zap.String("collection", coll.Name()), zap.Error(err))
		return
	}
	log.Debug("index ready", zap.String("collection", coll.Name()), zap.String("index", name))
}
