package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/expo-registration-api/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ConfigRepo keeps one form definition document per registration type, keyed by _id.
type ConfigRepo struct {
	coll *mongo.Collection
}

func NewConfigRepo(db *mongo.Database, name string) *ConfigRepo {
	return &ConfigRepo{coll: db.Collection(name)}
}

func (r *ConfigRepo) Put(ctx context.Context, c *domain.RegistrationConfig) error {
	_, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: c.Type}}, c, options.Replace().SetUpsert(true))
	return err
}

func (r *ConfigRepo) Get(ctx context.Context, t domain.RegistrationType) (*domain.RegistrationConfig, error) {
	var c domain.RegistrationConfig
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: t}}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("registration config not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
