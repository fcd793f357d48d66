package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type recordingSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (r *recordingSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	r.inputs = append(r.inputs, in)
	if r.err != nil {
		return nil, r.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestPublisherSendMessage(t *testing.T) {
	mock := &recordingSQS{}
	p := NewPublisher(mock, "https://sqs.local/notify")

	err := p.SendMessage(context.Background(), `{"order_id":7}`, map[string]string{
		"order_id": "7",
		"status":   "placed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("expected one SendMessage call, got %d", len(mock.inputs))
	}
	in := mock.inputs[0]
	if *in.QueueUrl != "https://sqs.local/notify" || *in.MessageBody != `{"order_id":7}` {
		t.Fatalf("unexpected input: %+v", in)
	}
	// Each attribute must carry its own value.
	if got := *in.MessageAttributes["order_id"].StringValue; got != "7" {
		t.Fatalf("order_id attribute = %q", got)
	}
	if got := *in.MessageAttributes["status"].StringValue; got != "placed" {
		t.Fatalf("status attribute = %q", got)
	}
}

func TestPublisherSendMessageError(t *testing.T) {
	p := NewPublisher(&recordingSQS{err: errors.New("throttled")}, "q")
	if err := p.SendMessage(context.Background(), "{}", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestPublisherFIFOGroupsByOrder(t *testing.T) {
	mock := &recordingSQS{}
	p := NewPublisher(mock, "https://sqs.local/notify.fifo")

	err := p.SendMessage(context.Background(), "{}", map[string]string{
		"order_id":    "1024",
		"dispatch_id": "d-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := mock.inputs[0]
	if in.MessageGroupId == nil || *in.MessageGroupId != "1024" {
		t.Fatalf("MessageGroupId = %v", in.MessageGroupId)
	}
	if in.MessageDeduplicationId == nil || *in.MessageDeduplicationId != "d-1" {
		t.Fatalf("MessageDeduplicationId = %v", in.MessageDeduplicationId)
	}

	if err := p.SendMessage(context.Background(), "{}", nil); err == nil {
		t.Fatal("expected an error without an order_id on a fifo queue")
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("expected the invalid message not to be sent, got %d calls", len(mock.inputs))
	}
}

func TestPublisherStandardQueueHasNoGroup(t *testing.T) {
	mock := &recordingSQS{}
	p := NewPublisher(mock, "https://sqs.local/notify")
	if err := p.SendMessage(context.Background(), "{}", map[string]string{"order_id": "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.inputs[0].MessageGroupId != nil {
		t.Fatal("standard queues must not get a MessageGroupId")
	}
}
