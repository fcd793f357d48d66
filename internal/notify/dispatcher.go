package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Outcomes reported to a Recorder.
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Notice is a request to tell a customer about their order's status.
type Notice struct {
	DispatchID   string `json:"dispatch_id"`
	OrderID      int64  `json:"order_id"`
	Status       string `json:"status"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
}

// Sender performs one delivery attempt for a notice.
type Sender interface {
	Deliver(ctx context.Context, n Notice) (Result, error)
}

// Recorder observes delivery outcomes.
type Recorder interface {
	NotificationResult(outcome string)
}

// DispatcherConfig tunes a Dispatcher.
type DispatcherConfig struct {
	// Timeout bounds each delivery attempt.
	Timeout time.Duration
	// MaxInFlight bounds concurrent deliveries.
	MaxInFlight int64
}

// Dispatcher runs deliveries off the request path. Notify never blocks on the
// provider and delivery errors are logged, never returned.
type Dispatcher struct {
	sender   Sender
	recorder Recorder
	timeout  time.Duration
	sem      *semaphore.Weighted

	mu       sync.Mutex
	closed   bool
	inFlight int
	// idle is closed whenever inFlight drops to zero.
	idle chan struct{}
}

// NewDispatcher returns a Dispatcher delivering through sender. recorder may be nil.
func NewDispatcher(sender Sender, recorder Recorder, cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 16
	}
	return &Dispatcher{
		sender:   sender,
		recorder: recorder,
		timeout:  cfg.Timeout,
		sem:      semaphore.NewWeighted(cfg.MaxInFlight),
		idle:     closedChan(),
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Notify schedules delivery of n and returns immediately.
func (d *Dispatcher) Notify(n Notice) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		logger.Warningf("dispatcher closed; dropping notice for order %d (%s)", n.OrderID, n.Status)
		return
	}
	if d.inFlight == 0 {
		d.idle = make(chan struct{})
	}
	d.inFlight++
	d.mu.Unlock()

	go func() {
		defer d.done()
		d.deliver(n)
	}()
}

func (d *Dispatcher) done() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight--
	if d.inFlight == 0 {
		close(d.idle)
	}
}

// Wait blocks until every scheduled delivery has finished or ctx is done.
// A frozen runtime, such as Lambda between invocations, must call it before
// returning a response so deliveries are not suspended mid-flight.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(n Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		logger.Errorf("notification for order %d (%s) timed out waiting for a slot", n.OrderID, n.Status)
		d.record(OutcomeFailed)
		return
	}
	defer d.sem.Release(1)

	res, err := d.sender.Deliver(ctx, n)
	switch {
	case err != nil:
		logger.Errorf("WhatsApp send failed for order %d (%s): %v", n.OrderID, n.Status, err)
		d.record(OutcomeFailed)
	case res.Skipped:
		logger.Debugf("notification for order %d skipped: %s", n.OrderID, res.Reason)
		d.record(OutcomeSkipped)
	default:
		logger.Infof("notified order %d status %s (sid=%s)", n.OrderID, n.Status, res.SID)
		d.record(OutcomeSent)
	}
}

func (d *Dispatcher) record(outcome string) {
	if d.recorder != nil {
		d.recorder.NotificationResult(outcome)
	}
}

// Close stops accepting notices and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	_ = d.Wait(context.Background())
}
