package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/expo-registration-api/internal/domain"
)

// RegistrationRepo stores registrations in one table per registration type.
// Dynamic form answers are written as top-level attributes next to the fixed ones.
type RegistrationRepo struct {
	client *dynamodb.Client
	tables func(string) string
}

func NewRegistrationRepo(client *dynamodb.Client, tables func(string) string) *RegistrationRepo {
	return &RegistrationRepo{client: client, tables: tables}
}

func (r *RegistrationRepo) table(t domain.RegistrationType) *string {
	return aws.String(r.tables(t.Collection()))
}

func (r *RegistrationRepo) Put(ctx context.Context, reg *domain.Registration) error {
	item, err := marshalRegistration(reg)
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           r.table(reg.Type),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("registration %s already exists: %w", reg.ID, domain.ErrConflict)
	}
	return err
}

func (r *RegistrationRepo) Get(ctx context.Context, t domain.RegistrationType, id string) (*domain.Registration, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: r.table(t),
		Key:       strKey("id", id),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("registration not found: %w", domain.ErrNotFound)
	}
	return unmarshalRegistration(out.Item)
}

func (r *RegistrationRepo) FindByEmail(ctx context.Context, t domain.RegistrationType, email string) (*domain.Registration, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 r.table(t),
		IndexName:                 aws.String(emailIndex),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": "email"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: email}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("registration not found: %w", domain.ErrNotFound)
	}
	return unmarshalRegistration(out.Items[0])
}

// QueryPage returns a page of registrations.
// cursor is a base64-encoded id used as ExclusiveStartKey.
func (r *RegistrationRepo) QueryPage(ctx context.Context, t domain.RegistrationType, limit int32, cursor string) ([]domain.Registration, string, error) {
	input := &dynamodb.ScanInput{
		TableName: r.table(t),
		Limit:     aws.Int32(limit),
	}
	if cursor != "" {
		id, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = strKey("id", id)
	}
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, "", err
	}
	regs := make([]domain.Registration, 0, len(out.Items))
	for _, item := range out.Items {
		reg, err := unmarshalRegistration(item)
		if err != nil {
			return nil, "", err
		}
		regs = append(regs, *reg)
	}
	next := ""
	if v, ok := out.LastEvaluatedKey["id"].(*types.AttributeValueMemberS); ok {
		next = encodeCursor(v.Value)
	}
	return regs, next, nil
}

// Update applies a partial update and returns the stored registration.
func (r *RegistrationRepo) Update(ctx context.Context, t domain.RegistrationType, id string, updates map[string]any) (*domain.Registration, error) {
	ue, err := registrationUpdateExpr(updates, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = "id"
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 r.table(t),
		Key:                       strKey("id", id),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil, fmt.Errorf("registration not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return unmarshalRegistration(out.Attributes)
}

// registrationUpdateExpr builds the update for a partial registration change.
// A nil or empty dynamic answer removes the attribute, which also takes the
// item out of that field's sparse index.
func registrationUpdateExpr(updates map[string]any, now time.Time) (*updateExpr, error) {
	set := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		if domain.IsReservedField(k) {
			set[k] = v
			continue
		}
		av, ok, err := dynamicAttr(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		if ok {
			set[k] = av
		} else {
			set[k] = removeAttr
		}
	}
	set["updated_at"] = now
	return buildUpdateExpr(set)
}

func (r *RegistrationRepo) Delete(ctx context.Context, t domain.RegistrationType, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           r.table(t),
		Key:                 strKey("id", id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("registration not found: %w", domain.ErrNotFound)
	}
	return err
}

func marshalRegistration(reg *domain.Registration) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(reg)
	if err != nil {
		return nil, fmt.Errorf("marshal registration: %w", err)
	}
	for k, v := range reg.Fields {
		if domain.IsReservedField(k) {
			continue
		}
		av, ok, err := dynamicAttr(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		if ok {
			item[k] = av
		}
	}
	return item, nil
}

func unmarshalRegistration(item map[string]types.AttributeValue) (*domain.Registration, error) {
	var reg domain.Registration
	if err := attributevalue.UnmarshalMap(item, &reg); err != nil {
		return nil, fmt.Errorf("unmarshal registration: %w", err)
	}
	for k, av := range item {
		if domain.IsReservedField(k) {
			continue
		}
		v, err := dynamicValue(av)
		if err != nil {
			return nil, fmt.Errorf("unmarshal field %s: %w", k, err)
		}
		if reg.Fields == nil {
			reg.Fields = make(map[string]any)
		}
		reg.Fields[k] = v
	}
	return &reg, nil
}

// dynamicAttr converts a form answer to an attribute value. Every answer is
// stored as a string so it matches the S key type of its field's GSI: scalars
// as their text form, lists and objects as JSON. Nil values and empty strings
// are skipped: index key attributes cannot be empty.
func dynamicAttr(v any) (types.AttributeValue, bool, error) {
	switch val := v.(type) {
	case nil:
		return nil, false, nil
	case string:
		if val == "" {
			return nil, false, nil
		}
		return &types.AttributeValueMemberS{Value: val}, true, nil
	case bool, float64, float32, int, int32, int64:
		return &types.AttributeValueMemberS{Value: fmt.Sprint(val)}, true, nil
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, false, err
		}
		return &types.AttributeValueMemberS{Value: string(raw)}, true, nil
	}
}

// dynamicValue reverses dynamicAttr. Strings holding a JSON list or object
// come back decoded.
func dynamicValue(av types.AttributeValue) (any, error) {
	if sv, ok := av.(*types.AttributeValueMemberS); ok {
		if t := strings.TrimSpace(sv.Value); t != "" && (t[0] == '[' || t[0] == '{') && json.Valid([]byte(t)) {
			var v any
			if err := json.Unmarshal([]byte(t), &v); err == nil {
				return v, nil
			}
		}
		return sv.Value, nil
	}
	var v any
	if err := attributevalue.Unmarshal(av, &v); err != nil {
		return nil, err
	}
	return v, nil
}
