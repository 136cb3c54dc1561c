package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/expo-registration-api/internal/domain"
)

const (
	// ttlAttr is the epoch second after which DynamoDB's TTL reaper may drop
	// the item. It covers the send-quota window, not just the code.
	ttlAttr = "ttl"
	// expiresAttr is expires_at as epoch seconds, used by Sweep.
	expiresAttr = "expires_epoch"
)

// OTPStore keeps one OTP record per email.
// PK: email
type OTPStore struct {
	client    *dynamodb.Client
	tableName string
	window    time.Duration
}

// NewOTPStore returns a store whose items are retained for at least window
// after the record's quota window starts.
func NewOTPStore(client *dynamodb.Client, tableName string, window time.Duration) *OTPStore {
	return &OTPStore{client: client, tableName: tableName, window: window}
}

type otpItem struct {
	domain.OTPRecord
	ExpiresEpoch int64 `dynamodbav:"expires_epoch"`
	TTL          int64 `dynamodbav:"ttl"`
}

func newOTPItem(rec *domain.OTPRecord, window time.Duration) otpItem {
	retain := rec.ExpiresAt
	if w := rec.WindowStart.Add(window); w.After(retain) {
		retain = w
	}
	if rec.CooldownUntil.After(retain) {
		retain = rec.CooldownUntil
	}
	return otpItem{OTPRecord: *rec, ExpiresEpoch: ttlSeconds(rec.ExpiresAt), TTL: ttlSeconds(retain)}
}

func (s *OTPStore) Get(ctx context.Context, email string) (*domain.OTPRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey("email", email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	var it otpItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	return &it.OTPRecord, nil
}

func (s *OTPStore) Set(ctx context.Context, rec *domain.OTPRecord) error {
	item, err := attributevalue.MarshalMap(newOTPItem(rec, s.window))
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return err
}

func (s *OTPStore) Delete(ctx context.Context, email string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       strKey("email", email),
	})
	return err
}

// Sweep deletes records whose code is past expiry. Each delete is conditional
// so a record re-issued mid-sweep survives.
func (s *OTPStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)}
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		ProjectionExpression:      aws.String("email"),
		FilterExpression:          aws.String("#exp <= :now"),
		ExpressionAttributeNames:  map[string]string{"#exp": expiresAttr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":now": cutoff},
	})
	removed := 0
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return removed, err
		}
		for _, item := range out.Items {
			_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:                 aws.String(s.tableName),
				Key:                       map[string]types.AttributeValue{"email": item["email"]},
				ConditionExpression:       aws.String("#exp <= :now"),
				ExpressionAttributeNames:  map[string]string{"#exp": expiresAttr},
				ExpressionAttributeValues: map[string]types.AttributeValue{":now": cutoff},
			})
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				continue
			}
			if err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// ttlSeconds rounds up so a record is never swept before it has expired.
func ttlSeconds(expiresAt time.Time) int64 {
	sec := expiresAt.Unix()
	if expiresAt.Nanosecond() > 0 {
		sec++
	}
	return sec
}
