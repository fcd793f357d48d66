package main

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/juju/errors"

	"github.com/imrishuroy/bakery-orderflow/internal/idempotency"
	"github.com/imrishuroy/bakery-orderflow/internal/notify"
)

// claimPrefix keeps dispatch ids apart from order Idempotency-Keys sharing
// the table.
const claimPrefix = "notify:"

// Processor delivers queued order notices at most once per dispatch id.
type Processor struct {
	claims   *idempotency.Store
	sender   notify.Sender
	recorder notify.Recorder
}

// NewProcessor returns a Processor. recorder may be nil.
func NewProcessor(claims *idempotency.Store, sender notify.Sender, recorder notify.Recorder) *Processor {
	return &Processor{claims: claims, sender: sender, recorder: recorder}
}

// Handle processes an SQS batch. Failed records are reported individually so
// SQS redrives only those; repeated failures end up in the dead-letter queue.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			logger.Errorf("message %s: %v", rec.MessageId, err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var n notify.Notice
	if err := json.Unmarshal([]byte(rec.Body), &n); err != nil {
		return errors.NotValidf("message body %q", rec.Body)
	}
	if n.OrderID == 0 || n.Status == "" {
		return errors.NotValidf("notice without order or status")
	}
	dispatchID := n.DispatchID
	if dispatchID == "" {
		dispatchID = rec.MessageId
	}
	key := claimPrefix + dispatchID

	existing, claimed, err := p.claims.Claim(ctx, key, strconv.FormatInt(n.OrderID, 10), "")
	if err != nil {
		return errors.Annotatef(err, "claiming dispatch %s", dispatchID)
	}
	if !claimed {
		state := "claimed"
		if existing != nil {
			state = existing.Status
		}
		logger.Infof("dispatch %s for order %d already %s; skipping", dispatchID, n.OrderID, state)
		return nil
	}

	res, err := p.sender.Deliver(ctx, n)
	if err != nil {
		p.record(notify.OutcomeFailed)
		if merr := p.claims.MarkFailed(ctx, key, err.Error()); merr != nil {
			logger.Errorf("marking dispatch %s failed: %v", dispatchID, merr)
		}
		return errors.Annotatef(err, "delivering order %d %s", n.OrderID, n.Status)
	}

	outcome := notify.OutcomeSent
	if res.Skipped {
		outcome = notify.OutcomeSkipped
	}
	p.record(outcome)
	body, _ := json.Marshal(res)
	if err := p.claims.MarkDone(ctx, key, string(body), 200); err != nil {
		// Delivered; a redelivery would find IN_PROGRESS and skip.
		logger.Errorf("marking dispatch %s done: %v", dispatchID, err)
	}
	logger.Infof("dispatch %s for order %d %s", dispatchID, n.OrderID, outcome)
	return nil
}

func (p *Processor) record(outcome string) {
	if p.recorder != nil {
		p.recorder.NotificationResult(outcome)
	}
}
