package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IndexManager maintains per-field GSIs on registration tables. A GSI only
// holds items that carry its key attribute, which makes every one sparse.
type IndexManager struct {
	client *dynamodb.Client
	tables func(string) string
}

func NewIndexManager(client *dynamodb.Client, tables func(string) string) *IndexManager {
	return &IndexManager{client: client, tables: tables}
}

func (m *IndexManager) CreateSparseIndex(ctx context.Context, collection, field, indexName string) error {
	_, err := m.client.UpdateTable(ctx, &dynamodb.UpdateTableInput{
		TableName: aws.String(m.tables(collection)),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(field), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexUpdates: []types.GlobalSecondaryIndexUpdate{
			{Create: &types.CreateGlobalSecondaryIndexAction{
				IndexName: aws.String(indexName),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(field), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeKeysOnly},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create index %s on %s: %w", indexName, collection, err)
	}
	return nil
}

func (m *IndexManager) IndexExists(ctx context.Context, collection, indexName string) (bool, error) {
	out, err := m.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(m.tables(collection)),
	})
	if err != nil {
		var rnf *types.ResourceNotFoundException
		if errors.As(err, &rnf) {
			return false, nil
		}
		return false, err
	}
	for _, g := range out.Table.GlobalSecondaryIndexes {
		if aws.ToString(g.IndexName) == indexName {
			return true, nil
		}
	}
	return false, nil
}

func (m *IndexManager) DropIndex(ctx context.Context, collection, indexName string) error {
	_, err := m.client.UpdateTable(ctx, &dynamodb.UpdateTableInput{
		TableName: aws.String(m.tables(collection)),
		GlobalSecondaryIndexUpdates: []types.GlobalSecondaryIndexUpdate{
			{Delete: &types.DeleteGlobalSecondaryIndexAction{IndexName: aws.String(indexName)}},
		},
	})
	if err != nil {
		return fmt.Errorf("drop index %s on %s: %w", indexName, collection, err)
	}
	return nil
}
