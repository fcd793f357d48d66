package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/juju/clock"
	"github.com/juju/loggo/v2"

	"github.com/imrishuroy/bakery-orderflow/internal/aws"
	"github.com/imrishuroy/bakery-orderflow/internal/config"
	"github.com/imrishuroy/bakery-orderflow/internal/idempotency"
	"github.com/imrishuroy/bakery-orderflow/internal/notify"
)

var logger = loggo.GetLogger("bakery.worker")

func main() {
	cfg, err := config.LoadFromEnvironment()
	if err != nil {
		logger.Criticalf("loading configuration: %v", err)
		os.Exit(1)
	}
	if err := loggo.ConfigureLoggers(cfg.LogConfig); err != nil {
		logger.Warningf("LOG_CONFIG %q: %v", cfg.LogConfig, err)
	}
	if cfg.IdempotencyTable == "" {
		logger.Criticalf("IDEMPOTENCY_TABLE is required")
		os.Exit(1)
	}

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion)
	if err != nil {
		logger.Criticalf("failed to init aws clients: %v", err)
		os.Exit(1)
	}

	p := NewProcessor(
		idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, idempotency.DefaultTTL, clock.WallClock),
		notify.GatewaySender{Gateway: notify.NewGateway(cfg.Notify, nil)},
		nil,
	)

	// If RUN_LOCAL=true, process a single simulated SQS event for local testing.
	if cfg.RunLocal {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"dispatch_id":"local-dispatch-1","order_id":1024,"status":"confirmed","customer_name":"Local","phone":"+910000000000"}`
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: testBody}}}
		resp, _ := p.Handle(ctx, event)
		if len(resp.BatchItemFailures) > 0 {
			logger.Criticalf("local message failed")
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
