package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Attribute names the publisher gives meaning to on FIFO queues.
const (
	GroupAttribute = "order_id"
	DedupAttribute = "dispatch_id"
)

// Publisher sends notices to one SQS queue.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
	fifo     bool
}

// NewPublisher returns a Publisher bound to a queue URL. A ".fifo" queue keeps
// each order's messages in order and drops duplicate dispatches.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// SendMessage sends body with attributes as string MessageAttributes. On a
// FIFO queue the order_id attribute is the message group and dispatch_id the
// deduplication id.
func (p *Publisher) SendMessage(ctx context.Context, body string, attributes map[string]string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &body,
	}
	if len(attributes) > 0 {
		input.MessageAttributes = make(map[string]sqstypes.MessageAttributeValue, len(attributes))
		for name, value := range attributes {
			input.MessageAttributes[name] = sqstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(value),
			}
		}
	}
	if p.fifo {
		group := attributes[GroupAttribute]
		if group == "" {
			return fmt.Errorf("fifo queue %s needs a %s attribute", p.QueueURL, GroupAttribute)
		}
		input.MessageGroupId = awsString(group)
		if dedup := attributes[DedupAttribute]; dedup != "" {
			input.MessageDeduplicationId = awsString(dedup)
		}
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message to %s: %w", p.QueueURL, err)
	}
	return nil
}

func awsString(s string) *string { return &s }
