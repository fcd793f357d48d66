package metrics

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/imrishuroy/bakery-orderflow/internal/aws"
)

var logger = loggo.GetLogger("bakery.metrics")

// maxDatumsPerCall keeps each PutMetricData request well inside the API limit.
const maxDatumsPerCall = 20

// Flusher copies counter increments from a Prometheus gatherer to CloudWatch.
// Only counters under the bakery namespace are sent; each flush sends the
// change since the previous flush.
type Flusher struct {
	client    aws.CloudWatchAPI
	namespace string
	gatherer  prometheus.Gatherer
	clock     clock.Clock

	mu   sync.Mutex
	last map[string]float64
}

// NewFlusher returns a Flusher publishing into namespace.
func NewFlusher(client aws.CloudWatchAPI, namespace string, gatherer prometheus.Gatherer, clk clock.Clock) *Flusher {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Flusher{
		client:    client,
		namespace: namespace,
		gatherer:  gatherer,
		clock:     clk,
		last:      map[string]float64{},
	}
}

// Flush publishes counter deltas. Counters that have not moved are skipped.
func (f *Flusher) Flush(ctx context.Context) error {
	families, err := f.gatherer.Gather()
	if err != nil {
		return errors.Annotate(err, "gathering metrics")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	var (
		data []cwtypes.MetricDatum
		seen = map[string]float64{}
	)
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER || !strings.HasPrefix(mf.GetName(), metricsNamespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			key, dims := seriesKey(mf.GetName(), m.GetLabel())
			value := m.GetCounter().GetValue()
			seen[key] = value
			delta := value - f.last[key]
			if delta <= 0 {
				continue
			}
			data = append(data, cwtypes.MetricDatum{
				MetricName: strPtr(strings.TrimPrefix(mf.GetName(), metricsNamespace+"_")),
				Dimensions: dims,
				Value:      &delta,
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  &now,
			})
		}
	}

	for start := 0; start < len(data); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(data))
		_, err := f.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  &f.namespace,
			MetricData: data[start:end],
		})
		if err != nil {
			// Keep the old baseline so the next flush resends these increments.
			return errors.Annotate(err, "publishing metrics to CloudWatch")
		}
	}
	f.last = seen
	return nil
}

// Run flushes every interval until ctx is done, then flushes once more.
func (f *Flusher) Run(ctx context.Context, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := f.Flush(final); err != nil {
				logger.Warningf("final metrics flush: %v", err)
			}
			cancel()
			return
		case <-f.clock.After(interval):
			if err := f.Flush(ctx); err != nil {
				logger.Warningf("metrics flush: %v", err)
			}
		}
	}
}

func seriesKey(name string, labels []*dto.LabelPair) (string, []cwtypes.Dimension) {
	var (
		b    strings.Builder
		dims []cwtypes.Dimension
	)
	b.WriteString(name)
	for _, l := range labels {
		b.WriteString("|" + l.GetName() + "=" + l.GetValue())
		dims = append(dims, cwtypes.Dimension{Name: strPtr(l.GetName()), Value: strPtr(l.GetValue())})
	}
	return b.String(), dims
}

func strPtr(s string) *string { return &s }
