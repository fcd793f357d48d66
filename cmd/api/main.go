package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/imrishuroy/bakery-orderflow/internal/admin"
	"github.com/imrishuroy/bakery-orderflow/internal/aws"
	"github.com/imrishuroy/bakery-orderflow/internal/cart"
	"github.com/imrishuroy/bakery-orderflow/internal/catalog"
	"github.com/imrishuroy/bakery-orderflow/internal/config"
	"github.com/imrishuroy/bakery-orderflow/internal/handlers"
	"github.com/imrishuroy/bakery-orderflow/internal/idempotency"
	"github.com/imrishuroy/bakery-orderflow/internal/inbound"
	"github.com/imrishuroy/bakery-orderflow/internal/metrics"
	"github.com/imrishuroy/bakery-orderflow/internal/notify"
	"github.com/imrishuroy/bakery-orderflow/internal/orders"
	"github.com/imrishuroy/bakery-orderflow/internal/store/memory"
	"github.com/imrishuroy/bakery-orderflow/internal/store/postgres"
)

var logger = loggo.GetLogger("bakery.api")

const (
	metricsFlushInterval = time.Minute
	// notifyDrainTimeout bounds how long a Lambda invocation waits for
	// its notifications after the response is built.
	notifyDrainTimeout = 5 * time.Second
)

// datastore is what the engines need from either store driver.
type datastore interface {
	catalog.Store
	cart.Store
	orders.Store
}

type app struct {
	router     *gin.Engine
	dispatcher *notify.Dispatcher
	flusher    *metrics.Flusher
	closers    []func()
}

func (a *app) close() {
	a.dispatcher.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config.Config) (datastore, func(), error) {
	if cfg.UsesMemoryStore() {
		st := memory.New()
		if err := memory.SeedDemo(st); err != nil {
			return nil, nil, errors.Trace(err)
		}
		logger.Warningf("using the in-memory datastore; data is lost on restart")
		return st, func() {}, nil
	}
	st, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Annotate(err, "opening database")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, errors.Annotate(err, "migrating database")
	}
	return st, st.Close, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{closers: []func(){closeStore}}

	adminSvc, err := admin.NewService(cfg.Admin, clock.WallClock)
	if err != nil {
		closeStore()
		return nil, errors.Trace(err)
	}

	collector := metrics.NewCollector()
	registry, err := metrics.NewRegistry(collector)
	if err != nil {
		closeStore()
		return nil, errors.Trace(err)
	}

	gateway := notify.NewGateway(cfg.Notify, nil)
	var sender notify.Sender = notify.GatewaySender{Gateway: gateway}

	hcfg := handlers.HandlerConfig{
		Catalog:       catalog.NewService(store),
		Cart:          cart.NewEngine(store),
		Admin:         adminSvc,
		Metrics:       collector,
		Gatherer:      registry,
		ClientOrigins: cfg.ClientOrigins,
	}

	if cfg.IdempotencyTable != "" || cfg.NotifyQueueURL != "" || cfg.CloudWatchNamespace != "" {
		clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion)
		if err != nil {
			closeStore()
			return nil, errors.Annotate(err, "initialising AWS clients")
		}
		if cfg.IdempotencyTable != "" {
			hcfg.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, idempotency.DefaultTTL, clock.WallClock)
		}
		if cfg.NotifyQueueURL != "" {
			sender = notify.QueueSender{Publisher: aws.NewPublisher(clients.SQS, cfg.NotifyQueueURL)}
			logger.Infof("order notifications go through %s", cfg.NotifyQueueURL)
		}
		if cfg.CloudWatchNamespace != "" {
			a.flusher = metrics.NewFlusher(clients.CloudWatch, cfg.CloudWatchNamespace, registry, clock.WallClock)
		}
	}

	a.dispatcher = notify.NewDispatcher(sender, collector, notify.DispatcherConfig{})
	engine := orders.NewEngine(store, a.dispatcher, orders.Options{
		Location: cfg.Location,
		Recorder: collector,
	})
	hcfg.Orders = engine
	hcfg.Inbound = inbound.NewHandler(engine, gateway)

	if !gateway.IsEnabled() {
		logger.Infof("WhatsApp gateway not configured; notifications are skipped")
	}
	a.router = handlers.NewRouter(hcfg)
	return a, nil
}

func main() {
	cfg, err := config.LoadFromEnvironment()
	if err != nil {
		logger.Criticalf("loading configuration: %v", err)
		os.Exit(1)
	}
	if err := loggo.ConfigureLoggers(cfg.LogConfig); err != nil {
		logger.Warningf("LOG_CONFIG %q: %v", cfg.LogConfig, err)
	}

	if !cfg.RunLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Criticalf("starting: %s", errors.ErrorStack(err))
		os.Exit(1)
	}
	defer a.close()

	if a.flusher != nil {
		flushed := make(chan struct{})
		go func() {
			defer close(flushed)
			a.flusher.Run(ctx, metricsFlushInterval)
		}()
		defer func() {
			stop()
			<-flushed
		}()
	}

	// RUN_LOCAL=true serves HTTP directly; otherwise we run behind API Gateway.
	if cfg.RunLocal {
		serve(ctx, a.router, ":"+cfg.Port)
		return
	}

	adapter := ginadapter.New(a.router)
	lambda.StartWithOptions(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		res, err := adapter.ProxyWithContext(ctx, req)
		// The runtime freezes once we return; finish notifications first.
		drain, cancel := context.WithTimeout(ctx, notifyDrainTimeout)
		defer cancel()
		if werr := a.dispatcher.Wait(drain); werr != nil {
			logger.Warningf("notifications still in flight after %s: %v", notifyDrainTimeout, werr)
		}
		return res, err
	}, lambda.WithContext(ctx))
}

func serve(ctx context.Context, router http.Handler, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			logger.Errorf("shutting down: %v", err)
		}
	}()

	logger.Infof("API running on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("serving: %v", err)
	}
}
