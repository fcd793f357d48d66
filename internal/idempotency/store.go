// Package idempotency records which requests and queued deliveries have
// already been handled, using conditional writes on a DynamoDB table.
package idempotency

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/imrishuroy/bakery-orderflow/internal/aws"
)

// DefaultTTL is how long records live before DynamoDB expires them.
const DefaultTTL = 48 * time.Hour

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration
	clock     clock.Clock
}

// NewStore returns a configured Store. A zero ttlWindow means DefaultTTL and
// a nil clock means the wall clock.
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration, clk clock.Clock) *Store {
	if ttlWindow <= 0 {
		ttlWindow = DefaultTTL
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		clock:     clk,
	}
}

func isConditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: key},
	}
}

// CreateIfNotExists creates an idempotency record with status IN_PROGRESS if
// the key does not exist or its record has expired but not yet been swept by
// the table's TTL. Returns (true, nil) if created and (false, nil) if a live
// record already exists. requestHash fingerprints the request the key was
// first used with and may be empty.
func (s *Store) CreateIfNotExists(ctx context.Context, key, orderID, requestHash string) (bool, error) {
	now := s.clock.Now().UTC()
	rec := IdempotencyRecord{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		OrderID:        orderID,
		RequestHash:    requestHash,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, errors.Annotate(err, "marshal record")
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(idempotency_key) OR expires_at <= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Annotate(err, "put item")
	}
	return true, nil
}

// Get retrieves an idempotency record by key. A missing or expired record
// returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            keyOf(key),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, errors.Annotate(err, "get item")
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec IdempotencyRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, errors.Annotate(err, "unmarshal item")
	}
	if rec.Expired(s.clock.Now()) {
		return nil, nil
	}
	return &rec, nil
}

// Reclaim moves a FAILED record back to IN_PROGRESS so the work can be
// retried. It reports false if the record is not FAILED.
func (s *Store) Reclaim(ctx context.Context, key string) (bool, error) {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 keyOf(key),
		UpdateExpression:    awsString("SET #s = :inprogress, updated_at = :ua"),
		ConditionExpression: awsString("#s = :failed"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inprogress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":failed":     &types.AttributeValueMemberS{Value: StatusFailed},
			":ua":         &types.AttributeValueMemberS{Value: s.clock.Now().UTC().Format(time.RFC3339)},
		},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Annotate(err, "update item (reclaim)")
	}
	return true, nil
}

// Claim takes ownership of key. It returns claimed=true when the caller
// should do the work: the key is new, or its previous attempt FAILED for the
// same requestHash. Otherwise the existing record is returned and the caller
// decides between replaying it and rejecting a reused key via Matches.
func (s *Store) Claim(ctx context.Context, key, orderID, requestHash string) (rec *IdempotencyRecord, claimed bool, err error) {
	created, err := s.CreateIfNotExists(ctx, key, orderID, requestHash)
	if err != nil || created {
		return nil, created, err
	}
	rec, err = s.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		// Expired between the put and the read.
		return s.Claim(ctx, key, orderID, requestHash)
	}
	if rec.Status != StatusFailed || !rec.Matches(requestHash) {
		return rec, false, nil
	}
	reclaimed, err := s.Reclaim(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if reclaimed {
		return nil, true, nil
	}
	rec, err = s.Get(ctx, key)
	return rec, false, err
}

// MarkDone sets status to DONE and stores a small response body and status.
func (s *Store) MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              keyOf(key),
		UpdateExpression: awsString("SET #s = :done, response_body = :rb, response_status = :rs, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":done": &types.AttributeValueMemberS{Value: StatusDone},
			":rb":   &types.AttributeValueMemberS{Value: responseBody},
			":rs":   &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
			":ua":   &types.AttributeValueMemberS{Value: s.clock.Now().UTC().Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	return errors.Annotate(err, "update item (mark done)")
}

// MarkFailed marks the idempotency record as FAILED with a note.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              keyOf(key),
		UpdateExpression: awsString("SET #s = :failed, note = :n, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed": &types.AttributeValueMemberS{Value: StatusFailed},
			":n":      &types.AttributeValueMemberS{Value: note},
			":ua":     &types.AttributeValueMemberS{Value: s.clock.Now().UTC().Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	return errors.Annotate(err, "update item (mark failed)")
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
