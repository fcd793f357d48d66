// Package awstest provides in-memory stand-ins for the AWS clients.
package awstest

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// DynamoDB is a minimal single-key table understanding the expressions the
// idempotency store sends: attribute_not_exists on put, an optional
// "#s = :value" condition on update, and SET clauses of name = :value pairs.
type DynamoDB struct {
	mu    sync.Mutex
	Items map[string]map[string]types.AttributeValue
	Key   string
	// Err, when set, is returned from every call.
	Err error

	PutCalls, GetCalls, UpdateCalls int
}

// NewDynamoDB returns an empty table keyed by idempotency_key.
func NewDynamoDB() *DynamoDB {
	return &DynamoDB{Items: map[string]map[string]types.AttributeValue{}, Key: "idempotency_key"}
}

func (m *DynamoDB) keyOf(attrs map[string]types.AttributeValue) (string, error) {
	v, ok := attrs[m.Key].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("missing key")
	}
	return v.Value, nil
}

// PutItem implements aws.DynamoDBAPI.
func (m *DynamoDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	k, err := m.keyOf(in.Item)
	if err != nil {
		return nil, err
	}
	if in.ConditionExpression != nil && strings.HasPrefix(*in.ConditionExpression, "attribute_not_exists") {
		if existing, ok := m.Items[k]; ok && !expired(existing, *in.ConditionExpression, in.ExpressionAttributeValues) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	item := make(map[string]types.AttributeValue, len(in.Item))
	for name, v := range in.Item {
		item[name] = v
	}
	m.Items[k] = item
	return &dynamodb.PutItemOutput{}, nil
}

// expired evaluates an "OR expires_at <= :now" clause against an existing item.
func expired(item map[string]types.AttributeValue, cond string, values map[string]types.AttributeValue) bool {
	_, clause, ok := strings.Cut(cond, " OR ")
	if !ok {
		return false
	}
	name, placeholder, ok := strings.Cut(strings.TrimSpace(clause), " <= ")
	if !ok {
		return false
	}
	have, _ := item[name].(*types.AttributeValueMemberN)
	limit, _ := values[strings.TrimSpace(placeholder)].(*types.AttributeValueMemberN)
	if have == nil || limit == nil {
		return false
	}
	h, err1 := strconv.ParseInt(have.Value, 10, 64)
	l, err2 := strconv.ParseInt(limit.Value, 10, 64)
	return err1 == nil && err2 == nil && h <= l
}

// GetItem implements aws.DynamoDBAPI.
func (m *DynamoDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	k, err := m.keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.Items[k]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

// UpdateItem implements aws.DynamoDBAPI.
func (m *DynamoDB) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	k, err := m.keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.Items[k]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}

	resolve := func(name string) string {
		if real, ok := in.ExpressionAttributeNames[name]; ok {
			return real
		}
		return name
	}

	if in.ConditionExpression != nil {
		lhs, rhs, ok := strings.Cut(*in.ConditionExpression, " = ")
		if !ok {
			return nil, errors.New("unsupported condition " + *in.ConditionExpression)
		}
		want, _ := in.ExpressionAttributeValues[strings.TrimSpace(rhs)].(*types.AttributeValueMemberS)
		got, _ := item[resolve(strings.TrimSpace(lhs))].(*types.AttributeValueMemberS)
		if want == nil || got == nil || want.Value != got.Value {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	set := strings.TrimPrefix(*in.UpdateExpression, "SET ")
	for _, clause := range strings.Split(set, ",") {
		name, placeholder, ok := strings.Cut(strings.TrimSpace(clause), " = ")
		if !ok {
			return nil, errors.New("unsupported update clause " + clause)
		}
		item[resolve(name)] = in.ExpressionAttributeValues[placeholder]
	}
	return &dynamodb.UpdateItemOutput{Attributes: item}, nil
}

// Status returns the status attribute stored for key, or "".
func (m *DynamoDB) Status(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.Items[key]["status"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// SQS records sent messages.
type SQS struct {
	mu       sync.Mutex
	Messages []*sqs.SendMessageInput
	Err      error
}

// SendMessage implements aws.SQSAPI.
func (q *SQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return nil, q.Err
	}
	q.Messages = append(q.Messages, in)
	return &sqs.SendMessageOutput{}, nil
}

// Bodies returns the bodies of all sent messages.
func (q *SQS) Bodies() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.Messages))
	for _, m := range q.Messages {
		out = append(out, *m.MessageBody)
	}
	return out
}
