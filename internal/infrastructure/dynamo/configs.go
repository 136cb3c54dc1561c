package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/expo-registration-api/internal/domain"
)

// ConfigRepo stores one form definition per registration type.
// PK: registration_type
type ConfigRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewConfigRepo(client *dynamodb.Client, tableName string) *ConfigRepo {
	return &ConfigRepo{client: client, tableName: tableName}
}

func (r *ConfigRepo) Put(ctx context.Context, c *domain.RegistrationConfig) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal registration config: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ConfigRepo) Get(ctx context.Context, t domain.RegistrationType) (*domain.RegistrationConfig, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("registration_type", string(t)),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("registration config not found: %w", domain.ErrNotFound)
	}
	var c domain.RegistrationConfig
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
