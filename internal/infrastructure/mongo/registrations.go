package mongo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/expo-registration-api/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// RegistrationRepo stores registrations in one collection per registration type.
// Dynamic answers are inlined at the top level of each document.
type RegistrationRepo struct {
	db     *mongo.Database
	tables func(string) string
}

func NewRegistrationRepo(db *mongo.Database, tables func(string) string) *RegistrationRepo {
	return &RegistrationRepo{db: db, tables: tables}
}

func (r *RegistrationRepo) coll(t domain.RegistrationType) *mongo.Collection {
	return r.db.Collection(r.tables(t.Collection()))
}

func (r *RegistrationRepo) Put(ctx context.Context, reg *domain.Registration) error {
	doc := *reg
	doc.Fields = dynamicFields(reg.Fields)
	_, err := r.coll(reg.Type).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("registration %s already exists: %w", reg.ID, domain.ErrConflict)
	}
	return err
}

func (r *RegistrationRepo) Get(ctx context.Context, t domain.RegistrationType, id string) (*domain.Registration, error) {
	return r.findOne(ctx, t, bson.D{{Key: "_id", Value: id}})
}

func (r *RegistrationRepo) FindByEmail(ctx context.Context, t domain.RegistrationType, email string) (*domain.Registration, error) {
	return r.findOne(ctx, t, bson.D{{Key: "email", Value: email}})
}

// QueryPage returns registrations in id order. cursor is the base64 id of the
// last item of the previous page.
func (r *RegistrationRepo) QueryPage(ctx context.Context, t domain.RegistrationType, limit int32, cursor string) ([]domain.Registration, string, error) {
	filter := bson.D{}
	if cursor != "" {
		b, err := base64.RawURLEncoding.DecodeString(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		filter = bson.D{{Key: "_id", Value: bson.D{{Key: "$gt", Value: string(b)}}}}
	}
	cur, err := r.coll(t).Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, "", err
	}
	regs := []domain.Registration{}
	if err := cur.All(ctx, &regs); err != nil {
		return nil, "", err
	}
	next := ""
	if len(regs) == int(limit) {
		next = base64.RawURLEncoding.EncodeToString([]byte(regs[len(regs)-1].ID))
	}
	return regs, next, nil
}

func (r *RegistrationRepo) Update(ctx context.Context, t domain.RegistrationType, id string, updates map[string]any) (*domain.Registration, error) {
	var reg domain.Registration
	err := r.coll(t).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		updateDoc(updates, time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&reg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("registration not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *RegistrationRepo) Delete(ctx context.Context, t domain.RegistrationType, id string) error {
	res, err := r.coll(t).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("registration not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *RegistrationRepo) findOne(ctx context.Context, t domain.RegistrationType, filter bson.D) (*domain.Registration, error) {
	var reg domain.Registration
	err := r.coll(t).FindOne(ctx, filter).Decode(&reg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("registration not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// dynamicFields drops reserved keys, which would collide with the fixed
// attributes, and nil values, which a sparse index would still pick up.
func dynamicFields(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if v == nil || domain.IsReservedField(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// updateDoc splits a partial update into $set and $unset. A nil dynamic
// value removes the attribute so sparse indexes drop the document.
func updateDoc(updates map[string]any, now time.Time) bson.D {
	set := bson.M{"updated_at": now}
	unset := bson.M{}
	for k, v := range updates {
		if k == "_id" || k == "id" {
			continue
		}
		if v == nil && !domain.IsReservedField(k) {
			unset[k] = ""
			continue
		}
		set[k] = v
	}
	doc := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		doc = append(doc, bson.E{Key: "$unset", Value: unset})
	}
	return doc
}
