package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/expo-registration-api/internal/domain"
)

// FieldTrackerRepo records active dynamic fields.
// PK: collection_name, SK: field_name
type FieldTrackerRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewFieldTrackerRepo(client *dynamodb.Client, tableName string) *FieldTrackerRepo {
	return &FieldTrackerRepo{client: client, tableName: tableName}
}

func (r *FieldTrackerRepo) ListByCollection(ctx context.Context, collection string) ([]domain.DynamicField, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("collection_name = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: collection},
		},
	})
	fields := []domain.DynamicField{}
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.DynamicField
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		fields = append(fields, page...)
	}
	return fields, nil
}

func (r *FieldTrackerRepo) Upsert(ctx context.Context, f *domain.DynamicField) error {
	item, err := attributevalue.MarshalMap(f)
	if err != nil {
		return fmt.Errorf("marshal dynamic field: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *FieldTrackerRepo) Delete(ctx context.Context, collection, fieldName string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("collection_name", collection, "field_name", fieldName),
	})
	return err
}
